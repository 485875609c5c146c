package adapter

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/resample/internal/bridge"
	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/settings"
)

func newTestAdapter(t *testing.T, inv *fakeInvoker) *Adapter {
	t.Helper()
	var n atomic.Int64
	a := New(Options{
		Invoker:  inv,
		NewJobID: func() string { return fmt.Sprintf("job-%d", n.Add(1)) },
	})
	t.Cleanup(a.Close)
	return a
}

func progress(jobID string, seq uint64, pct float64, status domain.ProgressStatus, msg string) domain.ProgressEvent {
	return domain.ProgressEvent{JobID: jobID, Seq: seq, Progress: pct, Status: status, Message: msg}
}

func jobIDOf(args map[string]any) string {
	id, _ := args["jobId"].(string)
	return id
}

func youtubeRequest(mode domain.ProcessingMode) StartRequest {
	return StartRequest{
		Input:     "https://youtube.com/watch?v=abc",
		InputType: domain.InputYouTube,
		Mode:      mode,
	}
}

func TestStart_DownloadOnly(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)

	inv.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		id := jobIDOf(args)
		a.OnProgress(progress(id, 1, 50, domain.ProgressDownloading, "[download] 50.0%"))
		a.OnProgress(progress(id, 2, 100, domain.ProgressCompleted, "Download completed"))
		return domain.DownloadResult{Success: true, Message: "ok", FilePath: "/music/abc.mp3"}, nil
	})

	out, err := a.Start(context.Background(), youtubeRequest(domain.ModeDownloadOnly))
	require.NoError(t, err)
	assert.True(t, out.Download.Success)
	assert.Equal(t, "/music/abc.mp3", out.Download.FilePath)
	assert.Nil(t, out.Separation)

	st := a.State()
	assert.False(t, st.Busy)
	assert.Equal(t, 100.0, st.Progress)
	assert.Equal(t, StatusCompleted, st.Status)

	assert.Equal(t, []string{
		"Starting youtube processing...",
		"[download] 50.0%",
		"Download completed",
		"File processed successfully",
	}, a.Console().Lines())

	call, ok := inv.call(bridge.UnifiedDownload)
	require.True(t, ok)
	assert.Equal(t, "https://youtube.com/watch?v=abc", call.Args["input"])
	assert.Equal(t, "YouTube", call.Args["inputType"])
	assert.Equal(t, "DownloadOnly", call.Args["processingMode"])
	assert.Nil(t, call.Args["startTime"])
	assert.Nil(t, call.Args["endTime"])
	assert.Equal(t, "job-1", call.Args["jobId"])
}

func TestStart_TimeRange(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)
	inv.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		return domain.DownloadResult{Success: true, FilePath: "/x.mp3"}, nil
	})

	start, end := 10, 40
	req := youtubeRequest(domain.ModeDownloadOnly)
	req.StartTime, req.EndTime = &start, &end
	_, err := a.Start(context.Background(), req)
	require.NoError(t, err)

	call, _ := inv.call(bridge.UnifiedDownload)
	assert.Equal(t, 10.0, call.Args["startTime"])
	assert.Equal(t, 40.0, call.Args["endTime"])

	// An empty selection is not sent
	end = start
	inv2 := newFakeInvoker()
	inv2.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		return domain.DownloadResult{Success: true, FilePath: "/x.mp3"}, nil
	})
	a2 := newTestAdapter(t, inv2)
	_, err = a2.Start(context.Background(), req)
	require.NoError(t, err)
	call, _ = inv2.call(bridge.UnifiedDownload)
	assert.Nil(t, call.Args["startTime"])
}

func TestStart_FailedResultOverridesCompletedEvent(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)

	var jobID string
	inv.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		jobID = jobIDOf(args)
		a.OnProgress(progress(jobID, 1, 100, domain.ProgressCompleted, "done?"))
		return domain.DownloadResult{Success: false, Message: "post-processing failed"}, nil
	})

	out, err := a.Start(context.Background(), youtubeRequest(domain.ModeDownloadOnly))
	require.NoError(t, err)
	assert.False(t, out.Download.Success)

	// A late duplicate changes nothing
	a.OnProgress(progress(jobID, 2, 100, domain.ProgressCompleted, "late"))

	st := a.State()
	assert.False(t, st.Busy)
	assert.Equal(t, 0.0, st.Progress)
	assert.Equal(t, StatusIdle, st.Status)
	assert.Contains(t, a.Console().Lines(), "Processing failed: post-processing failed")
	assert.NotContains(t, a.Console().Lines(), "late")
}

func TestStart_CallErrorIsLoggedNotRetried(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)
	inv.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		a.OnProgress(progress(jobIDOf(args), 1, 30, domain.ProgressDownloading, ""))
		return nil, errors.New("yt-dlp not found")
	})

	_, err := a.Start(context.Background(), youtubeRequest(domain.ModeDownloadOnly))
	require.Error(t, err)

	st := a.State()
	assert.False(t, st.Busy)
	assert.Equal(t, 0.0, st.Progress)
	assert.Equal(t, StatusIdle, st.Status)
	assert.Contains(t, a.Console().Lines(), "Processing failed: yt-dlp not found")
	assert.Equal(t, []string{bridge.UnifiedDownload}, inv.commands())
}

func TestOnProgress_ErrorEventResetsGauge(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)

	var during State
	inv.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		id := jobIDOf(args)
		a.OnProgress(progress(id, 1, 60, domain.ProgressDownloading, ""))
		a.OnProgress(progress(id, 2, 60, domain.ProgressError, "HTTP Error 403"))
		during = a.State()
		// Anything after the terminal event for this job is ignored
		a.OnProgress(progress(id, 3, 70, domain.ProgressDownloading, ""))
		return domain.DownloadResult{Success: false, Message: "HTTP Error 403"}, nil
	})

	_, err := a.Start(context.Background(), youtubeRequest(domain.ModeDownloadOnly))
	require.NoError(t, err)

	assert.False(t, during.Busy)
	assert.Equal(t, 0.0, during.Progress)
	assert.Equal(t, StatusIdle, during.Status)

	st := a.State()
	assert.False(t, st.Busy)
	assert.Equal(t, 0.0, st.Progress)
	assert.Contains(t, a.Console().Lines(), "HTTP Error 403")
}

func TestStart_DownloadAndExtract(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)

	var downloadJob string
	inv.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		downloadJob = jobIDOf(args)
		a.OnProgress(progress(downloadJob, 1, 100, domain.ProgressCompleted, "Download completed"))
		return domain.DownloadResult{Success: true, FilePath: "/music/abc.wav"}, nil
	})

	var atSeparationStart, afterEvents State
	inv.on(bridge.SeparateAudio, func(ctx context.Context, args map[string]any) (any, error) {
		atSeparationStart = a.State()
		id := jobIDOf(args)
		a.OnProgress(progress(id, 1, 40, domain.ProgressProcessing, "Separating 40%"))
		// Straggler from the finished download step
		a.OnProgress(progress(downloadJob, 9, 5, domain.ProgressDownloading, "stale"))
		a.OnProgress(progress(id, 2, 100, domain.ProgressCompleted, "Separation completed"))
		afterEvents = a.State()
		return domain.SeparationResult{Success: true, Message: "ok", OutputFiles: []string{"/music/separated/abc_(Vocals).wav"}}, nil
	})

	req := youtubeRequest(domain.ModeDownloadAndExtract)
	req.Model = "model_x.ckpt"
	req.Stems = []string{"vocals"}
	req.ModelDirectory = "/models"
	req.Separation = settings.Defaults("/music", "/models").SeparationSettings

	out, err := a.Start(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, out.Separation)
	assert.True(t, out.Separation.Success)

	assert.Equal(t, []string{bridge.UnifiedDownload, bridge.SeparateAudio}, inv.commands())

	// Busy is held across the gap between the two calls
	assert.True(t, atSeparationStart.Busy)
	assert.True(t, atSeparationStart.Separating)
	assert.Equal(t, StatusProcessing, atSeparationStart.Status)
	assert.True(t, afterEvents.Busy)
	assert.Equal(t, 100.0, afterEvents.Progress)

	st := a.State()
	assert.False(t, st.Busy)
	assert.False(t, st.Separating)
	assert.Equal(t, 100.0, st.Progress)

	lines := a.Console().Lines()
	assert.NotContains(t, lines, "stale")
	assert.Equal(t, []string{
		"Starting youtube processing...",
		"Download completed",
		"File processed successfully",
		"Starting automatic stem separation...",
		"Separating 40%",
		"Separation completed",
		"Stem separation completed successfully!",
	}, lines)

	call, ok := inv.call(bridge.SeparateAudio)
	require.True(t, ok)
	assert.Equal(t, "/music/abc.wav", call.Args["inputFile"])
	assert.Equal(t, "/models", call.Args["modelDirectory"])
	assert.NotEqual(t, downloadJob, call.Args["jobId"])
	sep, _ := call.Args["settings"].(map[string]any)
	assert.Equal(t, "model_x.ckpt", sep["model_filename"])
	assert.Equal(t, "vocals", sep["single_stem"])
}

func TestStart_ExtractWithoutModelSkipsSeparation(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)
	inv.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		return domain.DownloadResult{Success: true, FilePath: "/music/abc.wav"}, nil
	})

	req := youtubeRequest(domain.ModeDownloadAndExtract)
	req.Stems = []string{"vocals", "drums"}
	_, err := a.Start(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{bridge.UnifiedDownload}, inv.commands())
	assert.False(t, a.State().Busy)
}

func TestStart_SeparationFailure(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)
	inv.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		return domain.DownloadResult{Success: true, FilePath: "/music/abc.wav"}, nil
	})
	inv.on(bridge.SeparateAudio, func(ctx context.Context, args map[string]any) (any, error) {
		sep, _ := args["settings"].(map[string]any)
		if _, ok := sep["single_stem"]; ok {
			return nil, errors.New("single_stem should be unset for multiple stems")
		}
		return domain.SeparationResult{Success: false, Message: "model missing"}, nil
	})

	req := youtubeRequest(domain.ModeDownloadAndExtract)
	req.Model = "model_x.ckpt"
	req.Stems = []string{"vocals", "drums"}
	out, err := a.Start(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, out.Separation)
	assert.False(t, out.Separation.Success)

	st := a.State()
	assert.False(t, st.Busy)
	assert.Equal(t, 0.0, st.Progress)
	assert.Contains(t, a.Console().Lines(), "Stem separation failed: model missing")
}

func TestStart_RejectsBadInput(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)

	_, err := a.Start(context.Background(), StartRequest{Input: "  ", InputType: domain.InputYouTube})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = a.Start(context.Background(), StartRequest{Input: "hello", InputType: domain.InputUnknown})
	assert.ErrorIs(t, err, ErrUnknownInput)

	assert.Empty(t, inv.commands())
	assert.Equal(t, []string{
		"No input provided",
		"Unknown input type. Please select a valid input or specify the type manually.",
	}, a.Console().Lines())
	assert.False(t, a.State().Busy)
}

// blockingDownload registers a unified_download handler that reports 45%
// and then waits for release or cancellation.
func blockingDownload(inv *fakeInvoker, a *Adapter) (started chan string, release chan struct{}) {
	started = make(chan string, 1)
	release = make(chan struct{})
	inv.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		id := jobIDOf(args)
		a.OnProgress(progress(id, 1, 45, domain.ProgressDownloading, "[download] 45.0%"))
		started <- id
		select {
		case <-release:
		case <-ctx.Done():
		}
		return domain.DownloadResult{Success: false, Message: "Process cancelled"}, nil
	})
	return started, release
}

func TestStart_RefusedWhileBusy(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)
	started, release := blockingDownload(inv, a)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = a.Start(context.Background(), youtubeRequest(domain.ModeDownloadOnly))
	}()
	<-started

	_, err := a.Start(context.Background(), youtubeRequest(domain.ModeDownloadOnly))
	assert.ErrorIs(t, err, domain.ErrBusy)

	close(release)
	<-done
	assert.Equal(t, []string{bridge.UnifiedDownload}, inv.commands())
}

func TestStop_WhileDownloading(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)
	started, release := blockingDownload(inv, a)

	var stopTarget string
	inv.on(bridge.StopDownload, func(ctx context.Context, args map[string]any) (any, error) {
		stopTarget, _ = args["url"].(string)
		close(release)
		return "Download process stopped", nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = a.Start(context.Background(), youtubeRequest(domain.ModeDownloadOnly))
	}()
	jobID := <-started

	st := a.State()
	require.True(t, st.Busy)
	require.Equal(t, 45.0, st.Progress)
	require.Equal(t, StatusDownloading, st.Status)

	var states []State
	var mu sync.Mutex
	unsub := a.Subscribe(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	defer unsub()

	msg, err := a.Stop(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Download process stopped", msg)
	assert.Equal(t, "https://youtube.com/watch?v=abc", stopTarget)

	// Idle was published before the backend answered
	mu.Lock()
	require.NotEmpty(t, states)
	assert.Equal(t, State{Status: StatusIdle}, states[0])
	mu.Unlock()

	<-done

	// Late events for the stopped job do not resurrect busy
	a.OnProgress(progress(jobID, 2, 80, domain.ProgressDownloading, "late"))
	a.OnProgress(progress(jobID, 3, 100, domain.ProgressCompleted, "late"))

	st = a.State()
	assert.False(t, st.Busy)
	assert.Equal(t, 0.0, st.Progress)
	assert.Equal(t, StatusIdle, st.Status)

	lines := a.Console().Lines()
	stopping := slices.Index(lines, "Stopping process...")
	stopped := slices.Index(lines, "Download process stopped")
	require.NotEqual(t, -1, stopping)
	require.NotEqual(t, -1, stopped)
	assert.Less(t, stopping, stopped)
	assert.NotContains(t, lines, "late")
}

func TestStop_NothingRunning(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)

	msg, err := a.Stop(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, msg)
	assert.Equal(t, []string{"No active process to stop"}, a.Console().Lines())
	assert.Empty(t, inv.commands())
}

func TestStop_FailureStillGoesIdle(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)
	inv.on(bridge.StopDownload, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("backend unreachable")
	})

	_, err := a.Stop(context.Background(), "https://youtube.com/watch?v=abc")
	require.Error(t, err)

	assert.Equal(t, State{Status: StatusIdle}, a.State())
	assert.Equal(t, []string{
		"Stopping process...",
		"Failed to stop process: backend unreachable",
	}, a.Console().Lines())
}

func TestStart_AfterStopIsAllowed(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)
	started, release := blockingDownload(inv, a)
	inv.on(bridge.StopDownload, func(ctx context.Context, args map[string]any) (any, error) {
		return "Download process stopped", nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = a.Start(context.Background(), youtubeRequest(domain.ModeDownloadOnly))
	}()
	<-started

	_, err := a.Stop(context.Background(), "")
	require.NoError(t, err)

	inv.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		return domain.DownloadResult{Success: true, FilePath: "/x.mp3"}, nil
	})
	out, err := a.Start(context.Background(), youtubeRequest(domain.ModeDownloadOnly))
	require.NoError(t, err)
	assert.True(t, out.Download.Success)

	// The first call returning late does not touch the new operation's result
	close(release)
	<-done
	assert.Equal(t, 100.0, a.State().Progress)
}

func TestStart_AfterErrorEventIsAllowed(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)
	started, release := blockingDownload(inv, a)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = a.Start(context.Background(), youtubeRequest(domain.ModeDownloadOnly))
	}()
	id := <-started

	a.OnProgress(progress(id, 2, 30, domain.ProgressError, "HTTP Error 403"))
	st := a.State()
	assert.False(t, st.Busy)
	assert.Equal(t, 0.0, st.Progress)

	inv.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		return domain.DownloadResult{Success: true, FilePath: "/x.mp3"}, nil
	})
	out, err := a.Start(context.Background(), youtubeRequest(domain.ModeDownloadOnly))
	require.NoError(t, err)
	assert.True(t, out.Download.Success)

	// The hung call returning afterwards leaves the new result alone
	close(release)
	<-done
	st = a.State()
	assert.False(t, st.Busy)
	assert.Equal(t, 100.0, st.Progress)
	assert.Equal(t, StatusCompleted, st.Status)
}

func TestOnProgress_Filtering(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)

	// Idle: ignored
	a.OnProgress(progress("", 0, 50, domain.ProgressDownloading, "orphan"))
	assert.False(t, a.State().Busy)

	var during []State
	inv.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		id := jobIDOf(args)
		a.OnProgress(progress(id, 2, 20, domain.ProgressDownloading, "seq2"))
		a.OnProgress(progress(id, 1, 10, domain.ProgressDownloading, "seq1"))
		during = append(during, a.State())
		a.OnProgress(progress("someone-else", 1, 99, domain.ProgressDownloading, "foreign"))
		during = append(during, a.State())
		a.OnProgress(progress("", 0, 30, domain.ProgressDownloading, "untagged"))
		during = append(during, a.State())
		a.OnProgress(domain.ProgressEvent{JobID: id, Seq: 3, Progress: 90, Status: "paused"})
		during = append(during, a.State())
		return domain.DownloadResult{Success: true, FilePath: "/x.mp3"}, nil
	})

	_, err := a.Start(context.Background(), youtubeRequest(domain.ModeDownloadOnly))
	require.NoError(t, err)

	require.Len(t, during, 4)
	assert.Equal(t, 20.0, during[0].Progress)
	assert.Equal(t, 20.0, during[1].Progress)
	assert.Equal(t, 30.0, during[2].Progress)
	assert.Equal(t, 30.0, during[3].Progress)

	lines := a.Console().Lines()
	assert.Contains(t, lines, "seq2")
	assert.Contains(t, lines, "untagged")
	assert.NotContains(t, lines, "seq1")
	assert.NotContains(t, lines, "foreign")
	assert.NotContains(t, lines, "orphan")
}

func TestSeparate_Standalone(t *testing.T) {
	inv := newFakeInvoker()
	a := newTestAdapter(t, inv)
	inv.on(bridge.SeparateAudio, func(ctx context.Context, args map[string]any) (any, error) {
		a.OnProgress(progress(jobIDOf(args), 1, 50, domain.ProgressProcessing, "half"))
		return domain.SeparationResult{Success: true, OutputFiles: []string{"/o/a.wav"}}, nil
	})

	res, err := a.Separate(context.Background(), SeparateRequest{InputFile: "/in.wav", ModelDirectory: "/m"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"/o/a.wav"}, res.OutputFiles)
	assert.False(t, a.State().Busy)
	assert.Equal(t, 100.0, a.State().Progress)
}

func TestOperationTimeout(t *testing.T) {
	inv := newFakeInvoker()
	a := New(Options{Invoker: inv, OperationTimeout: 20 * time.Millisecond})
	defer a.Close()

	inv.on(bridge.UnifiedDownload, func(ctx context.Context, args map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := a.Start(context.Background(), youtubeRequest(domain.ModeDownloadOnly))
	require.Error(t, err)
	assert.Contains(t, a.Console().Lines(), "Processing failed: context deadline exceeded")
	assert.False(t, a.State().Busy)
}
