// Package tracks resolves track identifiers to the canonical audio files uploaded
// for them.
package tracks

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const trackExtension = ".wav"

var (
	// ErrInvalidTrackID is returned for identifiers that cannot name a file in the store.
	ErrInvalidTrackID = errors.New("invalid track id")
	// ErrTrackNotFound is returned when no canonical file exists for a track.
	ErrTrackNotFound = errors.New("track not found")
)

// Store maps track ids onto <dir>/<track_id>.wav.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the canonical file for trackID.
func (s *Store) Path(trackID string) (string, error) {
	if trackID == "" || trackID == "." || strings.Contains(trackID, "..") ||
		strings.ContainsAny(trackID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTrackID, trackID)
	}

	path := filepath.Join(s.dir, trackID+trackExtension)

	info, statErr := os.Stat(path)
	if statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
		}

		return "", fmt.Errorf("failed to inspect track '%s': %w", trackID, statErr)
	}

	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}

	return path, nil
}
