package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/datallboy/resample/internal/adapter"
	"github.com/datallboy/resample/internal/bridge"
	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/infra/logger"
	"github.com/datallboy/resample/internal/models"
)

func newClient() *bridge.Client {
	return bridge.NewClient(cfg.Client.ServerURL, nil)
}

func clientLogger() *logger.Logger {
	log, err := logger.New(cfg.Log.Path, logger.LevelWarn, false)
	if err != nil {
		return logger.Nop()
	}
	return log
}

type downloadFlags struct {
	inputType string
	mode      string
	model     string
	stems     []string
	modelDir  string
	start     int
	end       int
}

func newDownloadCmd() *cobra.Command {
	var f downloadFlags

	cmd := &cobra.Command{
		Use:   "download <url-or-file>",
		Short: "Download or import media and optionally separate it into stems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd.Context(), args[0], f)
		},
	}

	cmd.Flags().StringVar(&f.inputType, "type", "", "input type (YouTube, LocalFile); detected when empty")
	cmd.Flags().StringVar(&f.mode, "mode", string(domain.ModeDownloadOnly), "DownloadOnly, DownloadAndExtract or ExtractOnly")
	cmd.Flags().StringVar(&f.model, "model", "", "separation model filename; defaults to the saved setting")
	cmd.Flags().StringSliceVar(&f.stems, "stem", nil, "stem to keep; pass once for single-stem output")
	cmd.Flags().StringVar(&f.modelDir, "model-dir", "", "model directory; defaults to the saved setting")
	cmd.Flags().IntVar(&f.start, "start", -1, "selection start in seconds")
	cmd.Flags().IntVar(&f.end, "end", -1, "selection end in seconds")
	return cmd
}

func runDownload(ctx context.Context, input string, f downloadFlags) error {
	client := newClient()
	log := clientLogger()

	a := adapter.New(adapter.Options{
		Invoker:          client,
		Logger:           log,
		OperationTimeout: cfg.Client.OperationTimeout,
		ConfirmWindow:    cfg.Client.ConfirmWindow,
	})
	defer a.Close()

	unsub := a.Console().Subscribe(func(line string) { fmt.Println(line) })
	defer unsub()

	followCtx, stopFollow := context.WithCancel(ctx)
	defer stopFollow()
	go func() {
		if err := a.Follow(followCtx, nil, client.BaseURL()); err != nil {
			log.Warn("Progress stream closed: %v", err)
		}
	}()

	req := adapter.StartRequest{
		Input:     input,
		InputType: domain.InputType(f.inputType),
		Mode:      domain.ProcessingMode(f.mode),
		Stems:     f.stems,
	}
	if req.InputType == "" {
		req.InputType = a.DetectInput(ctx, input)
	}
	if f.start >= 0 && f.end >= 0 {
		req.StartTime, req.EndTime = &f.start, &f.end
	}

	if req.Mode.WantsSeparation() {
		s, err := a.LoadSettings(ctx)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		req.Separation = s.SeparationSettings
		req.Model = firstNonEmpty(f.model, s.SeparationSettings.ModelFilename)
		req.ModelDirectory = firstNonEmpty(f.modelDir, s.ResolvedModelDir())
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	type result struct {
		out adapter.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		// The call itself is not tied to the signal; Ctrl+C goes through stop_download
		out, err := a.Start(context.WithoutCancel(ctx), req)
		done <- result{out, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-sigCtx.Done():
		_, _ = a.Stop(context.WithoutCancel(ctx), "")
		r = <-done
	}

	if r.err != nil {
		return r.err
	}
	if !r.out.Download.Success {
		return errors.New(r.out.Download.Message)
	}
	if r.out.Separation != nil {
		for _, file := range r.out.Separation.OutputFiles {
			fmt.Println(file)
		}
		if !r.out.Separation.Success {
			return errors.New(r.out.Separation.Message)
		}
	} else if r.out.Download.FilePath != "" {
		fmt.Println(r.out.Download.FilePath)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop [url-or-file]",
		Short: "Stop the running job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			var msg string
			if err := newClient().Invoke(cmd.Context(), bridge.StopDownload, map[string]string{"url": target}, &msg); err != nil {
				return fmt.Errorf("failed to stop process: %w", err)
			}
			fmt.Println(msg)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var jobs []domain.Job
			if err := newClient().Invoke(cmd.Context(), bridge.GetJobHistory, map[string]int{"limit": limit}, &jobs); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSTATUS\tSTARTED\tINPUT")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.Kind, j.Status, humanize.Time(j.StartedAt), j.Input)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of jobs to show")
	return cmd
}

func newModelsCmd() *cobra.Command {
	var (
		downloaded bool
		download   string
		modelDir   string
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the separation model catalog or the downloaded models",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := newClient()
			cache := models.NewCache(adapter.ModelSource{Invoker: client}, clientLogger())

			if modelDir == "" && (downloaded || download != "") {
				a := adapter.New(adapter.Options{Invoker: client})
				defer a.Close()
				s, err := a.LoadSettings(ctx)
				if err != nil {
					return err
				}
				modelDir = s.ResolvedModelDir()
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

			switch {
			case download != "":
				if err := cache.DownloadModel(ctx, download, modelDir); err != nil {
					return err
				}
				fmt.Printf("Model %s downloaded to %s\n", download, modelDir)
				return nil

			case downloaded:
				if err := cache.RefreshDownloaded(ctx, modelDir); err != nil {
					return err
				}
				fmt.Fprintln(w, "FILENAME\tNAME")
				for _, m := range cache.Snapshot().Downloaded {
					fmt.Fprintf(w, "%s\t%s\n", m.Filename, m.FriendlyName)
				}

			default:
				if err := cache.Load(ctx); err != nil {
					return err
				}
				fmt.Fprintln(w, "FILENAME\tARCH\tSTEMS\tNAME")
				for _, m := range cache.Snapshot().Models {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Filename, m.Arch, strings.Join(models.AvailableStems(m), ", "), m.FriendlyName)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&downloaded, "downloaded", false, "list models present in the model directory")
	cmd.Flags().StringVar(&download, "download", "", "download the named model")
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "model directory; defaults to the saved setting")
	return cmd
}
