package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/pocket/internal/capsule"
)

func TestPurge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustStore(t, s, sampleCapsule("Photosynthesis"))

	if err := s.SaveProgress(ctx, id, capsule.Progress{BestScore: 40}); err != nil {
		t.Fatalf("SaveProgress failed: %v", err)
	}
	if err := s.SaveProgress(ctx, "old", capsule.Progress{BestScore: 90}); err != nil {
		t.Fatalf("SaveProgress failed: %v", err)
	}

	out, err := Purge(ctx, s)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if out.Purged != 1 || len(out.IDs) != 1 || out.IDs[0] != "old" {
		t.Errorf("out = %+v, want only the orphan purged", out)
	}
	if out.Message != "Deleted 1 orphaned progress record" {
		t.Errorf("Message = %q", out.Message)
	}

	p, _ := s.GetProgress(ctx, id)
	if p.BestScore != 40 {
		t.Errorf("BestScore = %d, want 40 kept", p.BestScore)
	}

	out, err = Purge(ctx, s)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if out.Purged != 0 || out.Message != "No orphaned progress to purge" {
		t.Errorf("second purge = %+v", out)
	}
}

func TestFormatPurgeMessage(t *testing.T) {
	tests := []struct {
		count int
		want  string
	}{
		{0, "No orphaned progress to purge"},
		{1, "Deleted 1 orphaned progress record"},
		{3, "Deleted 3 orphaned progress records"},
	}
	for _, tt := range tests {
		if got := formatPurgeMessage(tt.count); got != tt.want {
			t.Errorf("formatPurgeMessage(%d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}
