package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Category names understood by ToParameters.
const (
	CategorySpeedUp  = "speed_up"
	CategorySlowDown = "slow_down"
	CategoryBrighten = "brighten"
	CategoryDarken   = "darken"
	CategoryBassUp   = "bass_up"
	CategoryReverbUp = "reverb_up"
	CategoryCompress = "compress"
)

var (
	// ErrEmptyTaxonomy indicates a taxonomy without categories.
	ErrEmptyTaxonomy = errors.New("taxonomy has no categories")
	// ErrCategoryNameEmpty indicates a category without a name.
	ErrCategoryNameEmpty = errors.New("category name cannot be empty")
	// ErrDuplicateCategory indicates two categories sharing a name.
	ErrDuplicateCategory = errors.New("duplicate category")
	// ErrCategoryWithoutKeywords indicates a category with an empty keyword list.
	ErrCategoryWithoutKeywords = errors.New("category has no keywords")
)

// Category is one semantic concept and the keywords that anchor it.
type Category struct {
	Name     string   `toml:"name"`
	Keywords []string `toml:"keywords"`
}

// Taxonomy is the ordered list of categories a prompt is scored against.
type Taxonomy []Category

type taxonomyFile struct {
	Categories []Category `toml:"category"`
}

// DefaultTaxonomy returns the built-in seven-category keyword table.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		{Name: CategorySpeedUp, Keywords: []string{"fast", "energetic", "upbeat", "intense"}},
		{Name: CategorySlowDown, Keywords: []string{"slow", "chill", "relaxed"}},
		{Name: CategoryBrighten, Keywords: []string{"bright", "airy", "sparkly"}},
		{Name: CategoryDarken, Keywords: []string{"dark", "moody", "warm"}},
		{Name: CategoryBassUp, Keywords: []string{"bass", "deep", "low"}},
		{Name: CategoryReverbUp, Keywords: []string{"echo", "space", "ambient"}},
		{Name: CategoryCompress, Keywords: []string{"punchy", "tight"}},
	}
}

// LoadTaxonomy reads a taxonomy from a TOML file of [[category]] tables.
func LoadTaxonomy(path string) (Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file '%s': %w", path, err)
	}

	return ParseTaxonomy(data)
}

// ParseTaxonomy decodes and validates a TOML taxonomy.
func ParseTaxonomy(data []byte) (Taxonomy, error) {
	var file taxonomyFile

	err := toml.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode taxonomy: %w", err)
	}

	taxonomy := Taxonomy(file.Categories)

	validateErr := taxonomy.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return taxonomy, nil
}

// Validate checks that the taxonomy can be scored against.
func (t Taxonomy) Validate() error {
	if len(t) == 0 {
		return ErrEmptyTaxonomy
	}

	seen := make(map[string]struct{}, len(t))

	for _, category := range t {
		name := strings.TrimSpace(category.Name)
		if name == "" {
			return ErrCategoryNameEmpty
		}

		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: '%s'", ErrDuplicateCategory, name)
		}

		seen[name] = struct{}{}

		if len(category.Keywords) == 0 {
			return fmt.Errorf("%w: '%s'", ErrCategoryWithoutKeywords, name)
		}
	}

	return nil
}
