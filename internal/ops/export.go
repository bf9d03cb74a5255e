package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/pocket/internal/config"
	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/store"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	ID   string // required
	Path string // optional, default: <exports>/<title>-<timestamp>.json
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Bytes      int    `json:"bytes"`
	ExportedAt string `json:"exported_at"`
}

// ExportText returns the exchange text for the capsule stored under id.
func ExportText(ctx context.Context, api store.API, id string) (string, *FetchOutput, error) {
	fetched, err := Fetch(ctx, api, id)
	if err != nil {
		return "", nil, err
	}
	text, err := api.ExportCapsuleJSON(fetched.Capsule)
	if err != nil {
		return "", nil, errors.NewInternal(err)
	}
	return text, fetched, nil
}

// Export writes one capsule's exchange text to a file.
func Export(ctx context.Context, api store.API, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	text, fetched, err := ExportText(ctx, api, input.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	exportPath := input.Path
	if exportPath == "" {
		exportPath, err = defaultExportPath(cfg, fetched.Capsule.Meta.Title, now)
		if err != nil {
			return nil, err
		}
	}

	// Validate both user-provided and default paths; titles are user input.
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("export")
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}
	if err := writeFileAtomic(exportPath, []byte(text+"\n")); err != nil {
		return nil, err
	}

	return &ExportOutput{
		ID:         fetched.ID,
		Path:       exportPath,
		Bytes:      len(text) + 1,
		ExportedAt: now.UTC().Format(time.RFC3339),
	}, nil
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place, so an existing file survives a failed write.
func writeFileAtomic(path string, data []byte) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := createExportFile(tempPath)
	if err != nil {
		return errors.Wrap(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if isSymlink(path) {
		return errors.NewInvalidRequest("path must not be a symlink")
	}

	// On Windows os.Rename fails if the destination exists; keep the old file.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}

// defaultExportPath is <exports>/<sanitized-title>-<timestamp>.json.
func defaultExportPath(cfg *config.Config, title string, now time.Time) (string, error) {
	dir, err := ExportsDir(cfg)
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s-%s%s", SanitizeForFilename(title), now.Format("2006-01-02T150405"), ExchangeExt)
	return filepath.Join(dir, filename), nil
}
