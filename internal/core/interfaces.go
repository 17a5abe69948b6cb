// Package core defines the core data model and interfaces for the variation service.
package core

import "context"

// Parameter defaults applied when neither the client nor the prompt supplies a value.
const (
	DefaultTempoFactor = 1.0
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// ParameterSet is the fully populated set of transformation parameters for one variation.
type ParameterSet struct {
	TempoFactor  float64 `json:"tempo_factor"`
	BrightnessDB float64 `json:"brightness_db"`
	BassDB       float64 `json:"bass_db"`
	Reverb       float64 `json:"reverb"`
	Compression  float64 `json:"compression"`
}

// NeutralParameters returns the no-op parameter set.
func NeutralParameters() ParameterSet {
	return ParameterSet{
		TempoFactor:  DefaultTempoFactor,
		BrightnessDB: 0.0,
		BassDB:       0.0,
		Reverb:       0.0,
		Compression:  0.0,
	}
}

// Overrides holds client-supplied parameter values. A nil field means
// "use the interpreted value".
type Overrides struct {
	TempoFactor  *float64 `json:"tempo_factor,omitempty"`
	BrightnessDB *float64 `json:"brightness_db,omitempty"`
	BassDB       *float64 `json:"bass_db,omitempty"`
	Reverb       *float64 `json:"reverb,omitempty"`
	Compression  *float64 `json:"compression,omitempty"`
}

// Apply resolves the overrides against base field by field.
func (o Overrides) Apply(base ParameterSet) ParameterSet {
	merged := base

	if o.TempoFactor != nil {
		merged.TempoFactor = *o.TempoFactor
	}

	if o.BrightnessDB != nil {
		merged.BrightnessDB = *o.BrightnessDB
	}

	if o.BassDB != nil {
		merged.BassDB = *o.BassDB
	}

	if o.Reverb != nil {
		merged.Reverb = *o.Reverb
	}

	if o.Compression != nil {
		merged.Compression = *o.Compression
	}

	return merged
}

// VariationRequest describes a requested variation: a prompt plus optional explicit values.
type VariationRequest struct {
	Prompt string `json:"prompt"`
	Overrides
}

// VariationResult describes a completed variation.
type VariationResult struct {
	TrackID     string       `json:"track_id"`
	VariationID string       `json:"variation_id"`
	Params      ParameterSet `json:"params"`
	OutputPath  string       `json:"output_path"`
	Status      string       `json:"status"`
}

// EmbeddingLookup maps a word to its embedding vector. Implementations must be
// case-insensitive and safe for concurrent readers.
type EmbeddingLookup interface {
	Embed(word string) ([]float32, bool)
}

// PromptInterpreter converts free text into transformation parameters.
type PromptInterpreter interface {
	Interpret(prompt string) ParameterSet
}

// StageRunner applies one effect stage through the external audio engine.
type StageRunner interface {
	Tempo(ctx context.Context, inputPath, outputPath string, factor float64) (string, error)
	Equalize(ctx context.Context, inputPath, outputPath string, brightnessDB, bassDB float64) (string, error)
	Reverb(ctx context.Context, inputPath, outputPath string, amount float64) (string, error)
	Compress(ctx context.Context, inputPath, outputPath string, amount float64) (string, error)
}

// VariationEngine applies the full effect chain to an input file.
type VariationEngine interface {
	ApplyChain(ctx context.Context, inputPath string, params ParameterSet) (string, error)
}

// TrackStore resolves track identifiers to canonical audio files.
type TrackStore interface {
	Path(trackID string) (string, error)
}
