package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/variation-service/internal/core"
	"github.com/book-expert/variation-service/internal/embedding"
	"github.com/book-expert/variation-service/internal/ffmpeg"
	"github.com/book-expert/variation-service/internal/prompt"
	"github.com/book-expert/variation-service/internal/variation"
	"github.com/spf13/cobra"
)

// Flag names.
const (
	flagEmbeddings   = "embeddings"
	flagTaxonomy     = "taxonomy"
	flagLogDir       = "log-dir"
	flagScores       = "scores"
	flagInput        = "input"
	flagWorkDir      = "work-dir"
	flagFFmpeg       = "ffmpeg"
	flagPrompt       = "prompt"
	flagTempoFactor  = "tempo-factor"
	flagBrightnessDB = "brightness-db"
	flagBassDB       = "bass-db"
	flagReverb       = "reverb"
	flagCompression  = "compression"
)

// Defaults.
const (
	defaultEmbeddings = "embeddings/glove.6B.100d.txt"
	defaultWorkDir    = "uploaded_audio"
	logFileName       = "variation-cli.log"
)

var errInputRequired = errors.New("--input is required")

type globalFlags struct {
	embeddings string
	taxonomy   string
	logDir     string
}

type applyFlags struct {
	input        string
	workDir      string
	ffmpegPath   string
	prompt       string
	tempoFactor  float64
	brightnessDB float64
	bassDB       float64
	reverb       float64
	compression  float64
}

// interpretOutput is printed by the interpret command.
type interpretOutput struct {
	Prompt string            `json:"prompt"`
	Params core.ParameterSet `json:"params"`
	Scores prompt.Scores     `json:"scores,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var globals globalFlags

	rootCmd := &cobra.Command{
		Use:   "variation-cli",
		Short: "Interpret prompts and render track variations locally",
		Long: `variation-cli runs the prompt interpreter and the effect chain without
the service around them.

Examples:
  variation-cli interpret "fast and bright"
  variation-cli apply --input track.wav --prompt "slow dark" --reverb 0.4`,
		SilenceUsage: true,
	}

	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVar(&globals.embeddings, flagEmbeddings, defaultEmbeddings,
		"GloVe text file used for prompt similarity")
	rootCmd.PersistentFlags().StringVar(&globals.taxonomy, flagTaxonomy, "",
		"TOML taxonomy replacing the built-in keyword table")
	rootCmd.PersistentFlags().StringVar(&globals.logDir, flagLogDir, os.TempDir(), "Directory for the CLI log file")

	rootCmd.AddCommand(newInterpretCmd(&globals), newApplyCmd(&globals))

	return rootCmd
}

func newInterpretCmd(globals *globalFlags) *cobra.Command {
	var withScores bool

	cmd := &cobra.Command{
		Use:   "interpret <prompt>",
		Short: "Print the parameters a prompt evokes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interpreter, err := newInterpreter(globals)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			output := interpretOutput{Prompt: text, Params: interpreter.Interpret(text), Scores: nil}

			if withScores {
				output.Scores = prompt.Normalize(interpreter.Score(text))
			}

			return writeJSON(cmd.OutOrStdout(), output)
		},
	}

	cmd.Flags().BoolVar(&withScores, flagScores, false, "Include the normalized category scores")

	return cmd
}

func newApplyCmd(globals *globalFlags) *cobra.Command {
	var flags applyFlags

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Render a variation of a local WAV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.input == "" {
				return errInputRequired
			}

			log, err := logger.New(globals.logDir, logFileName)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer log.Close()

			params := core.NeutralParameters()

			if flags.prompt != "" {
				interpreter, interpErr := newInterpreter(globals)
				if interpErr != nil {
					return interpErr
				}

				params = interpreter.Interpret(flags.prompt)
			}

			params = overridesFromFlags(cmd, flags).Apply(params)

			runner := ffmpeg.NewRunner(ffmpeg.Config{BinaryPath: flags.ffmpegPath, StageTimeout: 0}, nil, log)
			engine := variation.New(runner, flags.workDir, log)

			outputPath, err := engine.ApplyChain(cmd.Context(), flags.input, params)
			if err != nil {
				log.Error("Failed to apply variation to '%s': %v", flags.input, err)

				return fmt.Errorf("failed to apply variation: %w", err)
			}

			return writeJSON(cmd.OutOrStdout(), core.VariationResult{
				TrackID:     "",
				VariationID: variation.VariationID(outputPath),
				Params:      params,
				OutputPath:  outputPath,
				Status:      "completed",
			})
		},
	}

	cmd.Flags().StringVarP(&flags.input, flagInput, "i", "", "Canonical WAV file to transform")
	cmd.Flags().StringVar(&flags.workDir, flagWorkDir, defaultWorkDir, "Directory receiving the final artifact")
	cmd.Flags().StringVar(&flags.ffmpegPath, flagFFmpeg, ffmpeg.DefaultBinary, "Path to the ffmpeg binary")
	cmd.Flags().StringVarP(&flags.prompt, flagPrompt, "p", "", "Free-text description of the variation")
	cmd.Flags().Float64Var(&flags.tempoFactor, flagTempoFactor, core.DefaultTempoFactor, "Tempo multiplier")
	cmd.Flags().Float64Var(&flags.brightnessDB, flagBrightnessDB, 0, "Gain around 1 kHz in dB")
	cmd.Flags().Float64Var(&flags.bassDB, flagBassDB, 0, "Gain around 100 Hz in dB")
	cmd.Flags().Float64Var(&flags.reverb, flagReverb, 0, "Reverb amount")
	cmd.Flags().Float64Var(&flags.compression, flagCompression, 0, "Compression amount")

	return cmd
}

// overridesFromFlags keeps only the parameters given explicitly on the command line.
func overridesFromFlags(cmd *cobra.Command, flags applyFlags) core.Overrides {
	pick := func(name string, value float64) *float64 {
		if !cmd.Flags().Changed(name) {
			return nil
		}

		return &value
	}

	return core.Overrides{
		TempoFactor:  pick(flagTempoFactor, flags.tempoFactor),
		BrightnessDB: pick(flagBrightnessDB, flags.brightnessDB),
		BassDB:       pick(flagBassDB, flags.bassDB),
		Reverb:       pick(flagReverb, flags.reverb),
		Compression:  pick(flagCompression, flags.compression),
	}
}

func newInterpreter(globals *globalFlags) (*prompt.Interpreter, error) {
	table, err := embedding.Load(globals.embeddings)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	taxonomy := prompt.DefaultTaxonomy()

	if globals.taxonomy != "" {
		taxonomy, err = prompt.LoadTaxonomy(globals.taxonomy)
		if err != nil {
			return nil, fmt.Errorf("failed to load taxonomy: %w", err)
		}
	}

	return prompt.New(table, taxonomy), nil
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(value)
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}
