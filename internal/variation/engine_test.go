// Package variation_test tests the effect chain orchestration.
package variation_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/variation-service/internal/core"
	"github.com/book-expert/variation-service/internal/variation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockStage = fmt.Errorf("mock stage failure: %w", core.ErrEngine)

// mockStageRunner appends the stage name to the input content, so the final artifact
// records the exact path each invocation took.
type mockStageRunner struct {
	mutex        sync.Mutex
	failAt       string
	writePartial bool
	cancelAt     string
	passInputAt  string
	cancel       context.CancelFunc
	stages       []string
	params       []float64
}

func (m *mockStageRunner) apply(stage, inputPath, outputPath string, values ...float64) (string, error) {
	m.mutex.Lock()
	m.stages = append(m.stages, stage)
	m.params = append(m.params, values...)
	m.mutex.Unlock()

	if m.cancelAt == stage && m.cancel != nil {
		m.cancel()
	}

	if m.passInputAt == stage {
		return inputPath, nil
	}

	if m.failAt == stage {
		if m.writePartial {
			_ = os.WriteFile(outputPath, []byte("partial"), 0o600)
		}

		return "", errMockStage
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", core.ErrInputMissing, inputPath)
	}

	err = os.WriteFile(outputPath, append(data, []byte("|"+stage)...), 0o600)
	if err != nil {
		return "", err
	}

	return outputPath, nil
}

func (m *mockStageRunner) Tempo(_ context.Context, in, out string, factor float64) (string, error) {
	return m.apply("tempo", in, out, factor)
}

func (m *mockStageRunner) Equalize(_ context.Context, in, out string, brightnessDB, bassDB float64) (string, error) {
	return m.apply("eq", in, out, brightnessDB, bassDB)
}

func (m *mockStageRunner) Reverb(_ context.Context, in, out string, amount float64) (string, error) {
	return m.apply("reverb", in, out, amount)
}

func (m *mockStageRunner) Compress(_ context.Context, in, out string, amount float64) (string, error) {
	return m.apply("compression", in, out, amount)
}

func setupEngine(t *testing.T) (*variation.Engine, *mockStageRunner, string, string) {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "variation-test.log")
	require.NoError(t, err)

	inputDir := t.TempDir()
	inputPath := filepath.Join(inputDir, "track.wav")
	require.NoError(t, os.WriteFile(inputPath, []byte("source"), 0o600))

	workDir := filepath.Join(t.TempDir(), "work")
	runner := &mockStageRunner{}

	return variation.New(runner, workDir, testLogger), runner, inputPath, workDir
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names
}

var sampleParams = core.ParameterSet{
	TempoFactor:  1.2,
	BrightnessDB: 4,
	BassDB:       -2,
	Reverb:       0.3,
	Compression:  0.5,
}

func TestApplyChain_SuccessKeepsOnlyFinalArtifact(t *testing.T) {
	t.Parallel()

	engine, runner, inputPath, workDir := setupEngine(t)

	finalPath, err := engine.ApplyChain(context.Background(), inputPath, sampleParams)
	require.NoError(t, err)

	assert.Equal(t, []string{"tempo", "eq", "reverb", "compression"}, runner.stages)
	assert.Equal(t, []float64{1.2, 4, -2, 0.3, 0.5}, runner.params)

	assert.Equal(t, []string{filepath.Base(finalPath)}, listDir(t, workDir))
	assert.True(t, strings.HasSuffix(finalPath, "_final.wav"))

	data, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, "source|tempo|eq|reverb|compression", string(data))

	assert.FileExists(t, inputPath, "the caller's input is never removed")
}

func TestApplyChain_FailureLeavesNothingBehind(t *testing.T) {
	t.Parallel()

	for _, failAt := range []string{"tempo", "eq", "reverb", "compression"} {
		for _, partial := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/partial=%t", failAt, partial), func(t *testing.T) {
				t.Parallel()

				engine, runner, inputPath, workDir := setupEngine(t)
				runner.failAt = failAt
				runner.writePartial = partial

				before := listDir(t, workDir)

				finalPath, err := engine.ApplyChain(context.Background(), inputPath, sampleParams)
				require.ErrorIs(t, err, core.ErrEngine)
				assert.Empty(t, finalPath)

				assert.Equal(t, len(before), len(listDir(t, workDir)))
				assert.Equal(t, failAt, runner.stages[len(runner.stages)-1], "no stage runs after a failure")
			})
		}
	}
}

func TestApplyChain_InputMissing(t *testing.T) {
	t.Parallel()

	engine, runner, inputPath, workDir := setupEngine(t)

	_, err := engine.ApplyChain(context.Background(), inputPath+".missing", sampleParams)
	require.ErrorIs(t, err, core.ErrInputMissing)

	assert.Empty(t, runner.stages)
	assert.Empty(t, listDir(t, workDir))
}

func TestApplyChain_CancellationCleansUp(t *testing.T) {
	t.Parallel()

	engine, runner, inputPath, workDir := setupEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner.cancelAt = "eq"
	runner.cancel = cancel

	_, err := engine.ApplyChain(ctx, inputPath, sampleParams)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []string{"tempo", "eq"}, runner.stages)
	assert.Empty(t, listDir(t, workDir))
}

func TestApplyChain_RejectsStageOutputOtherThanRequested(t *testing.T) {
	t.Parallel()

	engine, runner, inputPath, workDir := setupEngine(t)
	runner.passInputAt = "tempo"

	_, err := engine.ApplyChain(context.Background(), inputPath, sampleParams)
	require.ErrorIs(t, err, core.ErrEngine)

	assert.Equal(t, []string{"tempo"}, runner.stages, "the chain stops at the stage that misreported")
	assert.FileExists(t, inputPath, "the caller's input is never released")
	assert.Empty(t, listDir(t, workDir))
}

func TestApplyChain_ConcurrentInvocationsAreIsolated(t *testing.T) {
	t.Parallel()

	engine, _, _, workDir := setupEngine(t)
	inputDir := t.TempDir()

	const invocations = 8

	results := make([]string, invocations)
	errs := make([]error, invocations)

	var waitGroup sync.WaitGroup

	for index := range invocations {
		inputPath := filepath.Join(inputDir, fmt.Sprintf("track-%d.wav", index))
		require.NoError(t, os.WriteFile(inputPath, []byte(fmt.Sprintf("source-%d", index)), 0o600))

		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			results[index], errs[index] = engine.ApplyChain(context.Background(), inputPath, sampleParams)
		}()
	}

	waitGroup.Wait()

	seen := make(map[string]struct{}, invocations)

	for index := range invocations {
		require.NoError(t, errs[index])

		_, duplicate := seen[results[index]]
		assert.False(t, duplicate, "final artifacts must not collide")
		seen[results[index]] = struct{}{}

		data, err := os.ReadFile(results[index])
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("source-%d|tempo|eq|reverb|compression", index), string(data))
	}

	assert.Len(t, listDir(t, workDir), invocations)
}

func TestVariationID(t *testing.T) {
	t.Parallel()

	id := "0b6d3c2e-6f0e-4c53-9f55-5b8f3f6a2d10"

	assert.Equal(t, id, variation.VariationID(filepath.Join("work", variation.ArtifactName(id, variation.StageFinal))))
	assert.Equal(t, "short.wav", variation.VariationID("short.wav"))
	assert.Equal(t,
		"not-a-uuid-but-long-enough-to-be-sliced.wav",
		variation.VariationID("not-a-uuid-but-long-enough-to-be-sliced.wav"))
}
