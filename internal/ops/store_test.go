package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/errors"
)

func TestStore_Create(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	out, err := Store(ctx, s, StoreInput{Capsule: sampleCapsule("Photosynthesis")})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if len(out.ID) != 26 {
		t.Errorf("ID length = %d, want 26 (ULID)", len(out.ID))
	}
	if !out.Created {
		t.Error("Created = false, want true")
	}
}

func TestStore_UpdateByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustStore(t, s, sampleCapsule("Photosynthesis"))

	c := sampleCapsule("Photosynthesis II")
	out, err := Store(ctx, s, StoreInput{ID: id, Capsule: c})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if out.ID != id || out.Created {
		t.Errorf("out = %+v, want update of %s", out, id)
	}

	entries, _ := s.ListIndex(ctx)
	if len(entries) != 1 || entries[0].Title != "Photosynthesis II" {
		t.Errorf("index = %+v", entries)
	}
}

func TestStore_CreatedAtSetOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := sampleCapsule("Photosynthesis")
	out, err := Store(ctx, s, StoreInput{Capsule: in})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if in.CreatedAt != "" {
		t.Errorf("input modified: CreatedAt = %q", in.CreatedAt)
	}
	first, _ := s.LoadCapsule(ctx, out.ID)
	if first.CreatedAt == "" {
		t.Fatal("CreatedAt not stamped on first save")
	}

	// Pin an older creation time, then update without one.
	first.CreatedAt = "2024-01-01T00:00:00.000Z"
	if _, err := s.SaveCapsule(ctx, first, out.ID); err != nil {
		t.Fatalf("SaveCapsule failed: %v", err)
	}
	if _, err := Store(ctx, s, StoreInput{ID: out.ID, Capsule: sampleCapsule("Photosynthesis II")}); err != nil {
		t.Fatalf("Store update failed: %v", err)
	}

	second, _ := s.LoadCapsule(ctx, out.ID)
	if second.CreatedAt != "2024-01-01T00:00:00.000Z" {
		t.Errorf("CreatedAt = %q, want it kept across updates", second.CreatedAt)
	}
	if second.Meta.Title != "Photosynthesis II" {
		t.Errorf("Title = %q", second.Meta.Title)
	}
}

func TestStore_CreateWithChosenID(t *testing.T) {
	s := newTestStore(t)
	out, err := Store(context.Background(), s, StoreInput{ID: "bio-101", Capsule: sampleCapsule("Cells")})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if out.ID != "bio-101" || !out.Created {
		t.Errorf("out = %+v", out)
	}
}

func TestStore_Rejections(t *testing.T) {
	badQuiz := sampleCapsule("Quiz")
	badQuiz.Quiz[0].Choices = []string{"only", "three", "choices"}

	tests := []struct {
		name  string
		input StoreInput
		code  errors.ErrorCode
	}{
		{"nil capsule", StoreInput{}, errors.ErrInvalidRequest},
		{"bad id", StoreInput{ID: "../x", Capsule: sampleCapsule("T")}, errors.ErrInvalidRequest},
		{"no title", StoreInput{Capsule: &capsule.Capsule{Notes: []string{"n"}}}, errors.ErrCapsuleInvalid},
		{"three choices", StoreInput{Capsule: badQuiz}, errors.ErrCapsuleInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			_, err := Store(context.Background(), s, tt.input)
			if !errors.Is(err, tt.code) {
				t.Fatalf("error = %v, want %s", err, tt.code)
			}
			entries, _ := s.ListIndex(context.Background())
			if len(entries) != 0 {
				t.Errorf("rejected capsule was indexed: %+v", entries)
			}
		})
	}
}
