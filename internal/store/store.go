// Package store persists capsules, the library index, and learner progress
// into a kv.KV.
//
// Reads are fail-soft: content that is absent or fails to decode yields a
// default value, and an error is returned only when the backend itself fails.
// Writes touch at most the capsule record and the index; they go through
// kv.Apply so backends with batches commit both together.
package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/kv"
	"github.com/hpungsan/pocket/internal/logging"
)

// Storage keys.
const (
	IndexKey       = "pc_capsules_index"
	CapsulePrefix  = "pc_capsule_"
	ProgressPrefix = "pc_progress_"
	DraftKey       = "capsule_draft"
)

// API is the capsule store's public surface.
type API interface {
	ListIndex(ctx context.Context) ([]capsule.IndexEntry, error)
	// SaveIndex overwrites the index. Callers normally leave this to SaveCapsule.
	SaveIndex(ctx context.Context, entries []capsule.IndexEntry) error
	SaveCapsule(ctx context.Context, c *capsule.Capsule, id string) (string, error)
	LoadCapsule(ctx context.Context, id string) (*capsule.Capsule, error)
	DeleteCapsule(ctx context.Context, id string) error
	GetProgress(ctx context.Context, id string) (capsule.Progress, error)
	SaveProgress(ctx context.Context, id string, p capsule.Progress) error
	ExportCapsuleJSON(c *capsule.Capsule) (string, error)
	ValidateImported(env *capsule.Envelope) bool
	ImportCapsule(ctx context.Context, env *capsule.Envelope) (string, error)
}

// ProgressTracker records learner activity on top of the raw progress record.
type ProgressTracker interface {
	RecordQuizScore(ctx context.Context, id string, score int) (capsule.Progress, error)
	MarkKnown(ctx context.Context, id string, card int, known bool) (capsule.Progress, error)
}

// Store implements API over a kv.KV.
type Store struct {
	kv    kv.KV
	log   *logging.Logger
	now   func() time.Time
	newID func(time.Time) string
	mu    sync.Mutex // serializes index read-modify-write within this process
}

var (
	_ API             = (*Store)(nil)
	_ ProgressTracker = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for fail-soft fallbacks.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for timestamps and ids.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDFunc overrides id generation.
func WithIDFunc(fn func(time.Time) string) Option {
	return func(s *Store) { s.newID = fn }
}

// New returns a Store writing to backend.
func New(backend kv.KV, opts ...Option) *Store {
	s := &Store{
		kv:    backend,
		log:   logging.Nop(),
		now:   time.Now,
		newID: newULID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the backend.
func (s *Store) Close() error { return s.kv.Close() }

func capsuleKey(id string) string  { return CapsulePrefix + id }
func progressKey(id string) string { return ProgressPrefix + id }

func newULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// parseOr decodes raw into a T. When raw is absent or malformed it returns
// fallback and reports false.
func parseOr[T any](raw string, present bool, fallback T) (T, bool) {
	if !present {
		return fallback, false
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fallback, false
	}
	return v, true
}

// readOr loads key and decodes it with parseOr. Only backend failures are errors.
func readOr[T any](ctx context.Context, s *Store, key string, fallback T) (T, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return fallback, fmt.Errorf("read %s: %w", key, err)
	}
	v, decoded := parseOr(raw, ok, fallback)
	if ok && !decoded {
		s.log.Debug("malformed record, using default", "key", key)
	}
	return v, nil
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
