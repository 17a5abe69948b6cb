// Package embedding provides an immutable word-vector table loaded from a GloVe text file.
package embedding

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	// maxLineBytes bounds a single GloVe line; 300d vectors stay well under this.
	maxLineBytes = 1 << 20
	vectorBits   = 32
)

var (
	// ErrEmptyTable indicates that the source contained no vectors.
	ErrEmptyTable = errors.New("embedding table is empty")
	// ErrMalformedLine indicates a line that is not `word f1 ... fn` with a consistent n.
	ErrMalformedLine = errors.New("malformed embedding line")
)

// Table maps lowercase words to vectors. It is never mutated after construction.
type Table struct {
	vectors   map[string][]float32
	dimension int
}

// Load reads a GloVe text file from path.
func Load(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embeddings file '%s': %w", path, err)
	}
	defer file.Close()

	table, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings from '%s': %w", path, err)
	}

	return table, nil
}

// Read parses GloVe text format from r.
func Read(r io.Reader) (*Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineBytes)

	table := &Table{vectors: make(map[string][]float32), dimension: 0}
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		word, vector, parseErr := parseLine(fields)
		if parseErr != nil {
			return nil, fmt.Errorf("%w at line %d: %w", ErrMalformedLine, lineNumber, parseErr)
		}

		if table.dimension == 0 {
			table.dimension = len(vector)
		} else if len(vector) != table.dimension {
			return nil, fmt.Errorf("%w at line %d: expected %d components, got %d",
				ErrMalformedLine, lineNumber, table.dimension, len(vector))
		}

		table.vectors[strings.ToLower(word)] = vector
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		return nil, fmt.Errorf("failed to scan embeddings: %w", scanErr)
	}

	if len(table.vectors) == 0 {
		return nil, ErrEmptyTable
	}

	return table, nil
}

// FromMap builds a table from in-memory vectors. Keys are lowercased and vectors copied.
func FromMap(vectors map[string][]float32) *Table {
	table := &Table{vectors: make(map[string][]float32, len(vectors)), dimension: 0}

	for word, vector := range vectors {
		copied := make([]float32, len(vector))
		copy(copied, vector)
		table.vectors[strings.ToLower(word)] = copied

		if len(copied) > table.dimension {
			table.dimension = len(copied)
		}
	}

	return table
}

// Embed returns a copy of the vector for word, ignoring case.
func (t *Table) Embed(word string) ([]float32, bool) {
	vector, ok := t.vectors[strings.ToLower(word)]
	if !ok {
		return nil, false
	}

	copied := make([]float32, len(vector))
	copy(copied, vector)

	return copied, true
}

// Len returns the number of words in the table.
func (t *Table) Len() int {
	return len(t.vectors)
}

// Dimension returns the vector size.
func (t *Table) Dimension() int {
	return t.dimension
}

func parseLine(fields []string) (string, []float32, error) {
	if len(fields) < 2 {
		return "", nil, errors.New("word has no vector components")
	}

	vector := make([]float32, 0, len(fields)-1)

	for _, raw := range fields[1:] {
		value, err := strconv.ParseFloat(raw, vectorBits)
		if err != nil {
			return "", nil, fmt.Errorf("invalid component %q: %w", raw, err)
		}

		vector = append(vector, float32(value))
	}

	return fields[0], vector, nil
}
