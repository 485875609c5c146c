package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/settings"
)

// Separator drives the audio-separator CLI.
type Separator struct {
	BinaryPath string
}

func NewSeparator(binaryPath string) *Separator {
	return &Separator{BinaryPath: binaryPath}
}

// Args builds the command line for separating input with s.
func (c *Separator) Args(input string, s settings.SeparationSettings, modelDir, outputDir string) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	i := strconv.Itoa

	args := []string{input,
		"--model_filename", s.ModelFilename,
		"--output_dir", outputDir,
		"--output_format", strings.ToUpper(s.OutputFormat),
		"--normalization", f(s.Normalization),
		"--amplification", f(s.Amplification),
		"--sample_rate", i(s.SampleRate),

		"--mdx_segment_size", i(s.MDXSegmentSize),
		"--mdx_overlap", f(s.MDXOverlap),
		"--mdx_batch_size", i(s.MDXBatchSize),

		"--vr_batch_size", i(s.VRBatchSize),
		"--vr_window_size", i(s.VRWindowSize),
		"--vr_aggression", i(s.VRAggression),
		"--vr_post_process_threshold", f(s.VRPostProcessThreshold),

		"--demucs_segment_size", s.DemucsSegmentSize,
		"--demucs_shifts", i(s.DemucsShifts),
		"--demucs_overlap", f(s.DemucsOverlap),
		"--demucs_segments_enabled", strconv.FormatBool(s.DemucsSegmentsEnabled),

		"--mdxc_segment_size", i(s.MDXCSegmentSize),
		"--mdxc_overlap", i(s.MDXCOverlap),
		"--mdxc_batch_size", i(s.MDXCBatchSize),
		"--mdxc_pitch_shift", i(s.MDXCPitchShift),
	}

	if modelDir != "" {
		args = append(args, "--model_file_dir", modelDir)
	}
	if s.SingleStem != nil && *s.SingleStem != "" {
		args = append(args, "--single_stem", *s.SingleStem)
	}

	flags := []struct {
		on   bool
		name string
	}{
		{s.UseAutocast, "--use_autocast"},
		{s.MDXEnableDenoise, "--mdx_enable_denoise"},
		{s.VREnableTTA, "--vr_enable_tta"},
		{s.VRHighEndProcess, "--vr_high_end_process"},
		{s.VREnablePostProcess, "--vr_enable_post_process"},
		{s.MDXCOverrideModelSegmentSize, "--mdxc_override_model_segment_size"},
	}
	for _, fl := range flags {
		if fl.on {
			args = append(args, fl.name)
		}
	}

	return args
}

// gpuEnv returns the environment overrides for the requested device.
func gpuEnv(s settings.SeparationSettings) []string {
	if !s.UseGPU || s.GPUType == "cpu" {
		// Hide accelerators so torch falls back to the CPU
		return []string{"CUDA_VISIBLE_DEVICES=", "PYTORCH_ENABLE_MPS_FALLBACK=0"}
	}
	switch s.GPUType {
	case "mps":
		return []string{"PYTORCH_ENABLE_MPS_FALLBACK=1"}
	case "cuda":
		return []string{"CUDA_DEVICE_ORDER=PCI_BUS_ID"}
	}
	return nil
}

// Separate splits input into stems and returns the files it wrote.
func (c *Separator) Separate(ctx context.Context, input string, s settings.SeparationSettings, modelDir, outputDir string, p Progress) ([]string, error) {
	if !fileExists(input) {
		return nil, fmt.Errorf("input file not found: %s", input)
	}
	if s.ModelFilename == "" {
		return nil, errors.New("no separation model selected")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	before, err := listFiles(outputDir)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, c.BinaryPath, c.Args(input, s, modelDir, outputDir)...)
	cmd.Env = append(os.Environ(), gpuEnv(s)...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	p.Report(domain.ProgressProcessing, 0, fmt.Sprintf("Separating %s with %s...", filepath.Base(input), s.ModelFilename))

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start audio-separator: %w", err)
	}

	// Keep the last few non-progress lines for the error message
	var tail []string
	scanOutput(stderr, func(line string) {
		if pct, ok := parsePercent(line); ok {
			p.Report(domain.ProgressProcessing, pct, fmt.Sprintf("Separating audio... %.0f%%", pct))
			return
		}
		tail = append(tail, line)
		if len(tail) > 5 {
			tail = tail[1:]
		}
	})

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(tail) > 0 {
			return nil, fmt.Errorf("audio-separator failed: %s", strings.Join(tail, "; "))
		}
		return nil, fmt.Errorf("audio-separator failed: %w", err)
	}

	after, err := listFiles(outputDir)
	if err != nil {
		return nil, err
	}

	var outputs []string
	for path := range after {
		if _, existed := before[path]; !existed {
			outputs = append(outputs, path)
		}
	}
	sort.Strings(outputs)

	if len(outputs) == 0 {
		return nil, errors.New("separation finished but produced no output files")
	}
	return outputs, nil
}

func listFiles(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}
	files := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files[filepath.Join(dir, e.Name())] = struct{}{}
		}
	}
	return files, nil
}

// ListModels returns the model catalog known to audio-separator.
func (c *Separator) ListModels(ctx context.Context) ([]domain.ModelInfo, error) {
	cmd := exec.CommandContext(ctx, c.BinaryPath, "--list_models", "--list_format", "json")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseModelList(out)
}

// DownloadModel fetches a model file into modelDir.
func (c *Separator) DownloadModel(ctx context.Context, filename, modelDir string) error {
	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.BinaryPath,
		"--download_model_only",
		"--model_filename", filename,
		"--model_file_dir", modelDir,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to download model %s: %w: %s", filename, err, lastLine(out))
	}
	return nil
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// catalogEntry is one model in the JSON catalog. Depending on the
// audio-separator version the stems are a list or a comma separated string.
type catalogEntry struct {
	Filename     string          `json:"filename"`
	Arch         string          `json:"arch"`
	Architecture string          `json:"architecture"`
	FriendlyName string          `json:"friendly_name"`
	Name         string          `json:"name"`
	Stems        json.RawMessage `json:"stems"`
	OutputStems  json.RawMessage `json:"output_stems"`
}

// parseModelList accepts either a flat array of entries or an object keyed
// by filename or friendly name.
func parseModelList(data []byte) ([]domain.ModelInfo, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var entries []catalogEntry
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse model list: %w", err)
		}
	case '{':
		var keyed map[string]catalogEntry
		if err := json.Unmarshal(data, &keyed); err != nil {
			return nil, fmt.Errorf("failed to parse model list: %w", err)
		}
		for key, e := range keyed {
			if e.Filename == "" {
				e.Filename = key
			} else if e.FriendlyName == "" && e.Name == "" {
				e.FriendlyName = key
			}
			entries = append(entries, e)
		}
	default:
		return nil, errors.New("failed to parse model list: unexpected output")
	}

	models := make([]domain.ModelInfo, 0, len(entries))
	for _, e := range entries {
		if e.Filename == "" {
			continue
		}
		m := domain.ModelInfo{
			Filename:     e.Filename,
			Arch:         firstNonEmpty(e.Arch, e.Architecture, archFromFilename(e.Filename)),
			FriendlyName: firstNonEmpty(e.FriendlyName, e.Name, strings.TrimSuffix(e.Filename, filepath.Ext(e.Filename))),
			OutputStems:  stemsString(e.OutputStems, e.Stems),
		}
		models = append(models, m)
	}

	sort.Slice(models, func(i, j int) bool {
		if models[i].Arch != models[j].Arch {
			return models[i].Arch < models[j].Arch
		}
		return models[i].FriendlyName < models[j].FriendlyName
	})
	return models, nil
}

func stemsString(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		if len(raw) == 0 {
			continue
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
			return strings.Join(list, ", ")
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func archFromFilename(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".onnx"):
		return "MDX"
	case strings.HasSuffix(lower, ".pth"):
		return "VR"
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".th"):
		return "Demucs"
	case strings.HasSuffix(lower, ".ckpt"):
		return "MDXC"
	}
	return "Unknown"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
