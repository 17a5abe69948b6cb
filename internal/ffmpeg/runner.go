// Package ffmpeg applies individual audio effect stages by delegating the signal
// processing to the ffmpeg binary, one invocation per stage.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/variation-service/internal/core"
	"github.com/book-expert/variation-service/internal/fsutil"
)

// DefaultBinary is used when Config.BinaryPath is empty.
const DefaultBinary = "ffmpeg"

// Stage names used in errors and logs.
const (
	StageTempo       = "tempo"
	StageEqualize    = "eq"
	StageReverb      = "reverb"
	StageCompression = "compression"
)

// Effect constants.
const (
	MinTempoFactor = 0.5
	MaxTempoFactor = 2.0

	// FastPathThreshold is the amount below which reverb and compression are skipped.
	FastPathThreshold = 0.01
	minReverbAmount   = 0.05

	trebleCenterHz = 1000
	bassCenterHz   = 100

	echoInputGain  = 0.8
	echoOutputGain = 0.9
	echoDelayMs    = 60

	compressorBaseRatio     = 1.0
	compressorRatioSpan     = 3.0
	compressorBaseThreshold = -20.0
	compressorThresholdSpan = 10.0
	compressorAttackMs      = 5
	compressorReleaseMs     = 50
)

const (
	diagnosticUnknown  = "Unknown FFmpeg error"
	diagnosticNoOutput = "engine exited successfully but produced no output file"
	copyCommandFormat  = "copy %s -> %s"
)

// Config holds the engine configuration. A zero StageTimeout leaves invocations bounded
// only by the caller's context.
type Config struct {
	BinaryPath   string
	StageTimeout time.Duration
}

// Runner applies effect stages. It holds no per-call state and is safe for concurrent use.
type Runner struct {
	config   Config
	executor Executor
	log      *logger.Logger
}

// NewRunner creates a Runner. A nil executor runs the binary as a child process.
func NewRunner(cfg Config, executor Executor, log *logger.Logger) *Runner {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = DefaultBinary
	}

	if executor == nil {
		executor = CommandExecutor{}
	}

	return &Runner{
		config:   cfg,
		executor: executor,
		log:      log,
	}
}

// Tempo time-stretches the input. The factor is coerced into
// [MinTempoFactor, MaxTempoFactor].
func (r *Runner) Tempo(ctx context.Context, inputPath, outputPath string, factor float64) (string, error) {
	inputErr := checkInput(StageTempo, inputPath)
	if inputErr != nil {
		return "", inputErr
	}

	return r.run(ctx, StageTempo, inputPath, outputPath, TempoFilter(factor))
}

// Equalize applies a gain around 1 kHz and a gain around 100 Hz in one invocation.
func (r *Runner) Equalize(
	ctx context.Context,
	inputPath, outputPath string,
	brightnessDB, bassDB float64,
) (string, error) {
	inputErr := checkInput(StageEqualize, inputPath)
	if inputErr != nil {
		return "", inputErr
	}

	return r.run(ctx, StageEqualize, inputPath, outputPath, EqualizerFilter(brightnessDB, bassDB))
}

// Reverb adds an echo tail, or copies the input through when amount is negligible.
func (r *Runner) Reverb(ctx context.Context, inputPath, outputPath string, amount float64) (string, error) {
	inputErr := checkInput(StageReverb, inputPath)
	if inputErr != nil {
		return "", inputErr
	}

	if isNegligible(amount) {
		return r.copyThrough(StageReverb, inputPath, outputPath)
	}

	return r.run(ctx, StageReverb, inputPath, outputPath, ReverbFilter(amount))
}

// Compress applies dynamic-range compression, or copies the input through when amount
// is negligible.
func (r *Runner) Compress(ctx context.Context, inputPath, outputPath string, amount float64) (string, error) {
	inputErr := checkInput(StageCompression, inputPath)
	if inputErr != nil {
		return "", inputErr
	}

	if isNegligible(amount) {
		return r.copyThrough(StageCompression, inputPath, outputPath)
	}

	return r.run(ctx, StageCompression, inputPath, outputPath, CompressorFilter(amount))
}

// Version runs `<binary> -version` and returns the first line of its output.
func (r *Runner) Version(ctx context.Context) (string, error) {
	result, err := r.executor.Execute(ctx, r.config.BinaryPath, []string{"-version"})
	if err != nil {
		return "", fmt.Errorf("failed to probe %s: %w", r.config.BinaryPath, err)
	}

	firstLine, _, _ := strings.Cut(strings.TrimSpace(result.Stdout), "\n")

	return firstLine, nil
}

// TempoFilter builds the atempo expression for factor after clamping.
func TempoFilter(factor float64) string {
	return "atempo=" + formatFloat(ClampTempo(factor))
}

// ClampTempo coerces factor into [MinTempoFactor, MaxTempoFactor]. NaN maps to 1.0.
func ClampTempo(factor float64) float64 {
	if math.IsNaN(factor) {
		return 1.0
	}

	return max(MinTempoFactor, min(MaxTempoFactor, factor))
}

// EqualizerFilter builds the firequalizer expression.
func EqualizerFilter(brightnessDB, bassDB float64) string {
	return fmt.Sprintf("firequalizer=gain_entry='entry(%d,%s)':gain_entry='entry(%d,%s)'",
		trebleCenterHz, formatFloat(brightnessDB), bassCenterHz, formatFloat(bassDB))
}

// ReverbFilter builds the aecho expression; amount is raised to at least 0.05.
func ReverbFilter(amount float64) string {
	return fmt.Sprintf("aecho=%s:%s:%d:%s",
		formatFloat(echoInputGain), formatFloat(echoOutputGain), echoDelayMs,
		formatFloat(max(minReverbAmount, amount)))
}

// CompressorFilter builds the acompressor expression. Amount 0..1 maps the ratio to
// 1:1..4:1 and the threshold to -20..-30 dB.
func CompressorFilter(amount float64) string {
	ratio := compressorBaseRatio + compressorRatioSpan*amount
	threshold := compressorBaseThreshold - compressorThresholdSpan*amount

	return fmt.Sprintf("acompressor=threshold=%sdB:ratio=%s:attack=%d:release=%d",
		formatFloat(threshold), formatFloat(ratio), compressorAttackMs, compressorReleaseMs)
}

func (r *Runner) run(ctx context.Context, stage, inputPath, outputPath, filter string) (string, error) {
	args := []string{"-y", "-i", inputPath, "-af", filter, outputPath}
	command := strings.Join(append([]string{r.config.BinaryPath}, args...), " ")

	if r.config.StageTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.config.StageTimeout)
		defer cancel()
	}

	result, err := r.executor.Execute(ctx, r.config.BinaryPath, args)
	if err != nil {
		r.discard(outputPath)

		diagnostic := diagnosticUnknown
		if result != nil && strings.TrimSpace(result.Stderr) != "" {
			diagnostic = result.Stderr
		}

		ctxErr := ctx.Err()
		if ctxErr != nil {
			err = fmt.Errorf("%w: %w", err, ctxErr)
		}

		return "", NewEngineError(stage, command, diagnostic, err)
	}

	_, statErr := os.Stat(outputPath)
	if statErr != nil {
		r.discard(outputPath)

		return "", NewEngineError(stage, command, diagnosticNoOutput, statErr)
	}

	r.log.Info("Stage %s completed in %s: %s", stage, fsutil.FormatDuration(result.Duration), outputPath)

	return outputPath, nil
}

func (r *Runner) copyThrough(stage, inputPath, outputPath string) (string, error) {
	err := copyFile(inputPath, outputPath)
	if err != nil {
		r.discard(outputPath)

		command := fmt.Sprintf(copyCommandFormat, inputPath, outputPath)

		return "", NewEngineError(stage, command, err.Error(), err)
	}

	r.log.Info("Stage %s skipped, input copied through: %s", stage, outputPath)

	return outputPath, nil
}

// discard removes a partially written output. Failures are logged, never returned.
func (r *Runner) discard(path string) {
	removeErr := os.Remove(path)
	if removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
		r.log.Warn("Failed to remove partial output '%s': %v", path, removeErr)
	}
}

func checkInput(stage, path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", core.ErrInputMissing, path)
	}

	return NewEngineError(stage, "stat "+path, err.Error(), err)
}

// isNegligible reports whether amount is below the fast-path threshold. NaN counts as
// negligible.
func isNegligible(amount float64) bool {
	return !(amount >= FastPathThreshold)
}

func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	destination, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	_, copyErr := io.Copy(destination, source)
	closeErr := destination.Close()

	if copyErr != nil {
		return fmt.Errorf("failed to copy data: %w", copyErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close destination: %w", closeErr)
	}

	return nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
