// Package prompt converts free-text prompts into transformation parameters by scoring
// prompt words against keyword anchors in embedding space.
package prompt

import (
	"math"
	"strings"

	"github.com/book-expert/variation-service/internal/core"
)

// Linear coefficients from normalized category scores to audio parameters.
const (
	speedUpTempoGain    = 0.15
	slowDownTempoGain   = 0.20
	brightnessGainDB    = 8.0
	bassGainDB          = 6.0
	reverbAmountGain    = 0.5
	compressionAmtGain  = 0.5
	neutralNormalizeMax = 1.0
)

// Scores maps category names to accumulated similarity.
type Scores map[string]float64

type anchoredCategory struct {
	name    string
	anchors [][]float32
}

// Interpreter scores prompts against a taxonomy. It holds no mutable state and is
// safe for concurrent use.
type Interpreter struct {
	lookup     core.EmbeddingLookup
	categories []anchoredCategory
}

// New creates an Interpreter. Keyword vectors are resolved once; keywords absent from
// the lookup keep a nil anchor, which scores 0.0 against every word.
func New(lookup core.EmbeddingLookup, taxonomy Taxonomy) *Interpreter {
	categories := make([]anchoredCategory, 0, len(taxonomy))

	for _, category := range taxonomy {
		anchors := make([][]float32, 0, len(category.Keywords))

		for _, keyword := range category.Keywords {
			vector, _ := lookup.Embed(keyword)
			anchors = append(anchors, vector)
		}

		categories = append(categories, anchoredCategory{name: category.Name, anchors: anchors})
	}

	return &Interpreter{
		lookup:     lookup,
		categories: categories,
	}
}

// Interpret returns the parameter set evoked by prompt. It never fails: a prompt with
// no known words yields the neutral parameter set.
func (i *Interpreter) Interpret(prompt string) core.ParameterSet {
	return ToParameters(Normalize(i.Score(prompt)))
}

// Score accumulates, per category, the best keyword similarity of every known word.
func (i *Interpreter) Score(prompt string) Scores {
	scores := make(Scores, len(i.categories))
	for _, category := range i.categories {
		scores[category.name] = 0.0
	}

	for _, token := range strings.Fields(strings.ToLower(prompt)) {
		vector, ok := i.lookup.Embed(token)
		if !ok {
			continue
		}

		for _, category := range i.categories {
			scores[category.name] += bestSimilarity(vector, category.anchors)
		}
	}

	return scores
}

// bestSimilarity is the maximum similarity to any anchor, floored at zero so that
// category totals stay non-negative.
func bestSimilarity(vector []float32, anchors [][]float32) float64 {
	best := 0.0

	for _, anchor := range anchors {
		similarity := CosineSimilarity(vector, anchor)
		if similarity > best {
			best = similarity
		}
	}

	return best
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0.0 when either
// vector is missing, the lengths differ or either has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64

	for index := range a {
		valueA := float64(a[index])
		valueB := float64(b[index])
		dotProduct += valueA * valueB
		normA += valueA * valueA
		normB += valueB * valueB
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Normalize divides every score by the largest one. An all-zero input is divided by
// one instead, yielding all zeros.
func Normalize(scores Scores) Scores {
	maxScore := 0.0
	for _, score := range scores {
		if score > maxScore {
			maxScore = score
		}
	}

	if maxScore == 0 {
		maxScore = neutralNormalizeMax
	}

	normalized := make(Scores, len(scores))
	for name, score := range scores {
		normalized[name] = score / maxScore
	}

	return normalized
}

// ToParameters maps normalized category scores to audio parameters. Categories absent
// from scores count as zero.
func ToParameters(scores Scores) core.ParameterSet {
	return core.ParameterSet{
		TempoFactor: core.DefaultTempoFactor +
			speedUpTempoGain*scores[CategorySpeedUp] -
			slowDownTempoGain*scores[CategorySlowDown],
		BrightnessDB: brightnessGainDB*scores[CategoryBrighten] - brightnessGainDB*scores[CategoryDarken],
		BassDB:       bassGainDB * scores[CategoryBassUp],
		Reverb:       reverbAmountGain * scores[CategoryReverbUp],
		Compression:  compressionAmtGain * scores[CategoryCompress],
	}
}
