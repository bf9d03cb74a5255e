package ops

import (
	"context"
	"fmt"
	"io"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/config"
	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/store"
)

// MaxImportBytes bounds the size of an exchange file.
const MaxImportBytes = 4 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string // required
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Import reads an exchange file and stores its capsule under a new id.
func Import(ctx context.Context, api store.API, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openImportFile(input.Path)
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	data, err := readLimited(file)
	if err != nil {
		return nil, err
	}
	return ImportText(ctx, api, data)
}

// ImportText parses exchange text and stores its capsule under a new id.
// Text that is not JSON is an INVALID_REQUEST; JSON that fails validation is
// INVALID_SCHEMA. Nothing is written in either case.
func ImportText(ctx context.Context, api store.API, data []byte) (*ImportOutput, error) {
	env, err := capsule.ParseEnvelope(data)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid JSON: %v", err))
	}
	if !api.ValidateImported(env) {
		return nil, errors.NewInvalidSchema()
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("import")
	}

	id, err := api.ImportCapsule(ctx, env)
	if err != nil {
		return nil, errors.Wrap(err)
	}
	return &ImportOutput{ID: id, Title: env.Capsule.Meta.Title}, nil
}

// readLimited reads r up to MaxImportBytes.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}
	if len(data) > MaxImportBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("import file exceeds %d bytes", MaxImportBytes))
	}
	return data, nil
}

// ImportReader imports exchange text read from r, such as an uploaded file.
func ImportReader(ctx context.Context, api store.API, r io.Reader) (*ImportOutput, error) {
	data, err := readLimited(r)
	if err != nil {
		return nil, err
	}
	return ImportText(ctx, api, data)
}
