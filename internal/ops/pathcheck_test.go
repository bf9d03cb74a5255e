package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/pocket/internal/config"
	"github.com/hpungsan/pocket/internal/errors"
)

func expectCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !errors.Is(err, code) {
		t.Fatalf("expected %s, got: %v", code, err)
	}
}

func TestValidatePath_TraversalRejected(t *testing.T) {
	cfg := testConfig(t)

	for _, p := range []string{
		"../backup.json",
		"../../etc/backup.json",
		"/tmp/../etc/backup.json",
		`C:\exports\..\backup.json`,
	} {
		t.Run(p, func(t *testing.T) {
			expectCode(t, ValidatePath(p, PathCheckWrite, cfg), errors.ErrInvalidRequest)
		})
	}
}

func TestValidatePath_ExtensionRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.AllowUnsafePaths = true

	for _, p := range []string{"/tmp/backup", "/tmp/backup.jsonl", "/tmp/backup.txt"} {
		t.Run(p, func(t *testing.T) {
			expectCode(t, ValidatePath(p, PathCheckWrite, cfg), errors.ErrInvalidRequest)
		})
	}

	// Extension match is case-insensitive
	if err := ValidatePath(filepath.Join(t.TempDir(), "UPPER.JSON"), PathCheckWrite, cfg); err != nil {
		t.Errorf("UPPER.JSON rejected: %v", err)
	}
}

func TestValidatePath_ExportsDirAllowed(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.BaseDir, "exports", "algebra.json")

	if err := ValidatePath(path, PathCheckWrite, cfg); err != nil {
		t.Fatalf("write in exports dir rejected: %v", err)
	}
	expectCode(t, ValidatePath(path, PathCheckRead, cfg), errors.ErrFileNotFound)
}

func TestValidatePath_DirectoryRestriction(t *testing.T) {
	cfg := testConfig(t)
	expectCode(t, ValidatePath(filepath.Join(t.TempDir(), "backup.json"), PathCheckWrite, cfg), errors.ErrInvalidRequest)
}

func TestValidatePath_AllowedPaths(t *testing.T) {
	allowed := t.TempDir()
	cfg := testConfig(t)
	cfg.AllowedPaths = []string{allowed, "relative/ignored"}

	testFile := filepath.Join(allowed, "test.json")
	if err := os.WriteFile(testFile, []byte("{}"), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	if err := ValidatePath(testFile, PathCheckRead, cfg); err != nil {
		t.Errorf("expected success for path in AllowedPaths, got: %v", err)
	}

	dirs, err := AllowedDirs(cfg)
	if err != nil {
		t.Fatalf("AllowedDirs failed: %v", err)
	}
	if len(dirs) != 2 {
		t.Errorf("AllowedDirs = %v, want exports + one allowed path", dirs)
	}
}

func TestValidatePath_NestedPathRejected(t *testing.T) {
	allowed := t.TempDir()
	cfg := testConfig(t)
	cfg.AllowedPaths = []string{allowed}

	subDir := filepath.Join(allowed, "subdir")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}
	expectCode(t, ValidatePath(filepath.Join(subDir, "out.json"), PathCheckWrite, cfg), errors.ErrInvalidRequest)
}

func TestValidatePath_AllowUnsafePaths(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := testConfig(t)
	cfg.AllowUnsafePaths = true

	testFile := filepath.Join(tmpDir, "test.json")
	if err := os.WriteFile(testFile, []byte("{}"), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	if err := ValidatePath(testFile, PathCheckRead, cfg); err != nil {
		t.Errorf("expected success with AllowUnsafePaths=true, got: %v", err)
	}
	expectCode(t, ValidatePath(filepath.Join(tmpDir, "missing.json"), PathCheckRead, cfg), errors.ErrFileNotFound)
}

func TestValidatePath_SymlinkRejected_EvenWithUnsafePaths(t *testing.T) {
	for _, unsafe := range []bool{false, true} {
		allowed := t.TempDir()
		cfg := testConfig(t)
		cfg.AllowedPaths = []string{allowed}
		cfg.AllowUnsafePaths = unsafe

		target := filepath.Join(t.TempDir(), "secret.json")
		if err := os.WriteFile(target, []byte("{}"), 0600); err != nil {
			t.Fatalf("failed to create target file: %v", err)
		}
		link := filepath.Join(allowed, "link.json")
		if err := os.Symlink(target, link); err != nil {
			t.Skipf("cannot create symlink: %v", err)
		}

		expectCode(t, ValidatePath(link, PathCheckRead, cfg), errors.ErrInvalidRequest)
		expectCode(t, ValidatePath(link, PathCheckWrite, cfg), errors.ErrInvalidRequest)
	}
}

func TestValidatePath_Empty(t *testing.T) {
	expectCode(t, ValidatePath("  ", PathCheckRead, config.DefaultConfig()), errors.ErrInvalidRequest)
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path     string
		contains bool
	}{
		{"/home/user/file.json", false},
		{"../file.json", true},
		{"/home/../etc/passwd", true},
		{"./file.json", false},
		{"/home/user/.hidden/file.json", false},
		{"file..name.json", false},
		{`a\..\b.json`, true},
	}
	for _, tc := range tests {
		if got := containsTraversal(tc.path); got != tc.contains {
			t.Errorf("containsTraversal(%q) = %v, want %v", tc.path, got, tc.contains)
		}
	}
}
