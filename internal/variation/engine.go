// Package variation sequences the effect stages that turn a canonical track into a
// variation, and owns every intermediate artifact the chain produces.
package variation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/book-expert/logger"
	"github.com/book-expert/variation-service/internal/core"
	"github.com/book-expert/variation-service/internal/fsutil"
)

// Artifact suffixes, one per stage, in chain order.
const (
	StageTempo  = "tempo"
	StageEQ     = "eq"
	StageReverb = "reverb"
	StageFinal  = "final"
)

type stage struct {
	name  string
	apply func(ctx context.Context, inputPath, outputPath string) (string, error)
}

// Engine runs the tempo -> EQ -> reverb -> compression chain. It holds no per-call
// state; concurrent chains never share an artifact path.
type Engine struct {
	runner  core.StageRunner
	workDir string
	log     *logger.Logger
}

// New creates an Engine writing artifacts under workDir.
func New(runner core.StageRunner, workDir string, log *logger.Logger) *Engine {
	return &Engine{
		runner:  runner,
		workDir: workDir,
		log:     log,
	}
}

// ApplyChain applies every stage in order and returns the path of the final artifact.
// On success only the final artifact survives; on failure, including cancellation
// observed between stages, nothing created by this call survives.
func (e *Engine) ApplyChain(ctx context.Context, inputPath string, params core.ParameterSet) (string, error) {
	_, statErr := os.Stat(inputPath)
	if statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", core.ErrInputMissing, inputPath)
		}

		return "", fmt.Errorf("failed to inspect input '%s': %w", inputPath, statErr)
	}

	mkdirErr := fsutil.EnsureDir(e.workDir)
	if mkdirErr != nil {
		return "", fmt.Errorf("failed to prepare work directory: %w", mkdirErr)
	}

	scope := newArtifacts(e.workDir, e.log)
	finalPath := ""

	defer func() {
		if finalPath != "" {
			scope.releaseExcept(finalPath)
		} else {
			scope.releaseAll()
		}
	}()

	current := inputPath

	for _, step := range e.chain(params) {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			e.log.Error("Variation chain for '%s' cancelled before %s stage: %v", inputPath, step.name, ctxErr)

			return "", fmt.Errorf("variation chain cancelled before %s stage: %w", step.name, ctxErr)
		}

		outputPath := scope.next(step.name)

		produced, err := step.apply(ctx, current, outputPath)
		if err != nil {
			e.log.Error("Variation chain for '%s' failed at %s stage: %v", inputPath, step.name, err)

			return "", err
		}

		if produced != outputPath {
			e.log.Error("Variation chain for '%s': %s stage wrote '%s', expected '%s'",
				inputPath, step.name, produced, outputPath)

			return "", fmt.Errorf("%w: %s stage returned unexpected artifact '%s'", core.ErrEngine, step.name, produced)
		}

		current = outputPath
	}

	finalPath = current
	e.log.Info("Variation chain for '%s' completed: %s", inputPath, finalPath)

	return finalPath, nil
}

func (e *Engine) chain(params core.ParameterSet) []stage {
	return []stage{
		{
			name: StageTempo,
			apply: func(ctx context.Context, inputPath, outputPath string) (string, error) {
				return e.runner.Tempo(ctx, inputPath, outputPath, params.TempoFactor)
			},
		},
		{
			name: StageEQ,
			apply: func(ctx context.Context, inputPath, outputPath string) (string, error) {
				return e.runner.Equalize(ctx, inputPath, outputPath, params.BrightnessDB, params.BassDB)
			},
		},
		{
			name: StageReverb,
			apply: func(ctx context.Context, inputPath, outputPath string) (string, error) {
				return e.runner.Reverb(ctx, inputPath, outputPath, params.Reverb)
			},
		},
		{
			name: StageFinal,
			apply: func(ctx context.Context, inputPath, outputPath string) (string, error) {
				return e.runner.Compress(ctx, inputPath, outputPath, params.Compression)
			},
		},
	}
}
