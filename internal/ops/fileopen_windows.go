//go:build windows

package ops

import (
	"os"

	"github.com/hpungsan/pocket/internal/errors"
)

// No O_NOFOLLOW here; both helpers Lstat first instead.

func createExportFile(path string) (*os.File, error) {
	if isSymlink(path) {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
}

func openImportFile(path string) (*os.File, error) {
	if isSymlink(path) {
		return nil, errors.NewInvalidRequest("import path is a symlink")
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewFileNotFound(path)
	}
	return f, err
}

func isSymlink(path string) bool {
	fi, err := os.Lstat(path)
	return err == nil && fi.Mode()&os.ModeSymlink != 0
}
