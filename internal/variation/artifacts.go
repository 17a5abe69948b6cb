package variation

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
)

const (
	artifactExtension = ".wav"
	uuidLength        = 36
)

// artifacts records every path a chain invocation may have written so that all of
// them can be released when the invocation ends.
type artifacts struct {
	dir   string
	paths []string
	log   *logger.Logger
}

func newArtifacts(dir string, log *logger.Logger) *artifacts {
	return &artifacts{dir: dir, paths: nil, log: log}
}

// next registers and returns a fresh, collision-free path for stage. The path is
// registered before the stage runs so a partially written output is still released.
func (a *artifacts) next(stage string) string {
	path := filepath.Join(a.dir, ArtifactName(uuid.NewString(), stage))
	a.paths = append(a.paths, path)

	return path
}

func (a *artifacts) releaseAll() {
	for _, path := range a.paths {
		a.remove(path)
	}
}

func (a *artifacts) releaseExcept(keep string) {
	for _, path := range a.paths {
		if path != keep {
			a.remove(path)
		}
	}
}

// remove deletes path. Errors are logged and swallowed so they never replace the
// error being propagated.
func (a *artifacts) remove(path string) {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		a.log.Warn("Failed to remove artifact '%s': %v", path, err)
	}
}

// ArtifactName returns the file name of the artifact produced by stage for id.
func ArtifactName(id, stage string) string {
	return id + "_" + stage + artifactExtension
}

// VariationID extracts the identifier from an artifact path produced by this package.
func VariationID(artifactPath string) string {
	base := filepath.Base(artifactPath)
	if len(base) < uuidLength {
		return base
	}

	candidate := base[:uuidLength]

	_, err := uuid.Parse(candidate)
	if err != nil {
		return base
	}

	return candidate
}
