package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

// datasetDir resolves the directory of a dataset, which must lie strictly within the working copy
func (w *WorkingCopy) datasetDir(datasetPath string) (string, error) {
	target := filepath.Join(w.root, filepath.FromSlash(datasetPath))
	if err := contained(w.root, target); err != nil {
		return "", err
	}
	if meta := filepath.Join(w.root, w.metaDir); meta == target || contained(meta, target) == nil {
		return "", errors.New(fmt.Sprintf("%s is within the metadata directory", target)).Wrap(status.ErrPathEscape)
	}

	// symbolic links are resolved on the OS file system only
	if _, isOS := w.fs.(*afero.OsFs); isOS {
		resolvedRoot, err := filepath.EvalSymlinks(w.root)
		if err != nil {
			return "", err
		}
		resolved, err := filepath.EvalSymlinks(target)
		if err == nil {
			if err = contained(resolvedRoot, resolved); err != nil {
				return "", err
			}
		}
	}
	return target, nil
}

func contained(root, target string) error {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.New(fmt.Sprintf("%s is not a path within %s", target, root)).Wrap(status.ErrPathEscape)
	}
	return nil
}

// removeDatasets removes the directories of some datasets.
//
// All paths are checked before anything is removed.
func (w *WorkingCopy) removeDatasets(datasetPaths []string) error {
	dirs := make([]string, 0, len(datasetPaths))
	for _, p := range datasetPaths {
		dir, err := w.datasetDir(p)
		if err != nil {
			return err
		}
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		if err := w.fs.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}

// tilePath resolves the location of a tile of a dataset
func (w *WorkingCopy) tilePath(datasetDir, tileName string) (string, error) {
	pth := filepath.Join(datasetDir, filepath.FromSlash(tileName))
	if err := contained(datasetDir, pth); err != nil {
		return "", err
	}
	return pth, nil
}

func isNotExist(err error) bool {
	return os.IsNotExist(err)
}
