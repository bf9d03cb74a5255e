package ops

import (
	"strings"

	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/store"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Learner is the store surface needed to grade and record quiz attempts.
type Learner interface {
	store.API
	store.ProgressTracker
}

// ValidateID trims id and rejects empty or path-like values.
func ValidateID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	if strings.ContainsAny(id, "/\\") || strings.ContainsFunc(id, func(r rune) bool { return r < 32 }) {
		return "", errors.NewInvalidRequest("id contains invalid characters")
	}
	return id, nil
}
