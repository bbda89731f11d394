package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/reqlens/internal/config"
	"github.com/hpungsan/reqlens/internal/errors"
)

func TestValidateExportPath_TraversalRejected(t *testing.T) {
	cfg := config.DefaultConfig()

	tests := []struct {
		name string
		path string
	}{
		{"parent traversal", "../backup.csv"},
		{"deep traversal", "../../etc/backup.csv"},
		{"mid-path traversal", "/tmp/../etc/backup.csv"},
		{"hidden in path", "/tmp/safe/../../../etc/shadow.csv"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateExportPath(tc.path, ".csv", cfg)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got: %v", err)
			}
		})
	}
}

func TestValidateExportPath_ExtensionMustMatchFormat(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	tests := []struct {
		name string
		path string
		ext  string
		ok   bool
	}{
		{"csv", "/tmp/reqs.csv", ".csv", true},
		{"upper case", "/tmp/reqs.CSV", ".csv", true},
		{"json", "/tmp/reqs.json", ".json", true},
		{"text", "/tmp/reqs.txt", ".txt", true},
		{"no extension", "/tmp/reqs", ".csv", false},
		{"json for csv", "/tmp/reqs.json", ".csv", false},
		{"jsonl", "/tmp/reqs.jsonl", ".json", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateExportPath(tc.path, tc.ext, cfg)
			if tc.ok && err != nil {
				t.Errorf("ValidateExportPath(%q) error = %v", tc.path, err)
			}
			if !tc.ok && !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("ValidateExportPath(%q) = %v, want ErrInvalidRequest", tc.path, err)
			}
		})
	}
}

func TestValidateExportPath_DirectoryRestriction(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := config.DefaultConfig()

	err := ValidateExportPath("/tmp/reqs.csv", ".csv", cfg)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}

	exportsDir, err := DefaultExportsDir()
	if err != nil {
		t.Fatalf("DefaultExportsDir() error = %v", err)
	}
	if err := ValidateExportPath(filepath.Join(exportsDir, "reqs.csv"), ".csv", cfg); err != nil {
		t.Errorf("default exports dir rejected: %v", err)
	}
}

func TestValidateExportPath_AllowedPaths(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{tmpDir, "relative/ignored"}

	if err := ValidateExportPath(filepath.Join(tmpDir, "reqs.json"), ".json", cfg); err != nil {
		t.Errorf("expected success for path in AllowedPaths, got: %v", err)
	}

	otherDir := t.TempDir()
	err := ValidateExportPath(filepath.Join(otherDir, "reqs.json"), ".json", cfg)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest outside AllowedPaths, got: %v", err)
	}
}

func TestValidateExportPath_NestedPathRejected(t *testing.T) {
	allowedDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{allowedDir}

	subDir := filepath.Join(allowedDir, "subdir")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	err := ValidateExportPath(filepath.Join(subDir, "out.csv"), ".csv", cfg)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}

func TestValidateExportPath_SymlinkFileRejected(t *testing.T) {
	allowedDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{allowedDir}

	targetFile := filepath.Join(t.TempDir(), "secret.csv")
	if err := os.WriteFile(targetFile, []byte("x"), 0600); err != nil {
		t.Fatalf("failed to create target file: %v", err)
	}
	symlink := filepath.Join(allowedDir, "out.csv")
	if err := os.Symlink(targetFile, symlink); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	err := ValidateExportPath(symlink, ".csv", cfg)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}

	// directory restrictions can be lifted, symlink restrictions cannot
	cfg.AllowUnsafePaths = true
	err = ValidateExportPath(symlink, ".csv", cfg)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest with AllowUnsafePaths, got: %v", err)
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path     string
		contains bool
	}{
		{"/home/user/file.txt", false},
		{"../file.txt", true},
		{"/home/../etc/passwd", true},
		{"./file.txt", false},
		{"/home/user/.hidden/file.txt", false},
		{"file..name.txt", false},
		{"/tmp/a/b/../c.csv", true},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			if got := containsTraversal(tc.path); got != tc.contains {
				t.Errorf("containsTraversal(%q) = %v, want %v", tc.path, got, tc.contains)
			}
		})
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple name", "sow", "sow"},
		{"with spaces", "statement of work", "statement-of-work"},
		{"forward slash", "path/to/file", "path-to-file"},
		{"backslash", "path\\to\\file", "path-to-file"},
		{"double dots", "foo..bar", "foo-bar"},
		{"traversal attempt", "../../../etc/passwd", "etc-passwd"},
		{"absolute path", "/tmp/evil", "tmp-evil"},
		{"mixed attack", "../foo/bar\\..\\baz", "foo-bar-baz"},
		{"null bytes", "foo\x00bar", "foobar"},
		{"control chars", "foo\x01\x02bar", "foobar"},
		{"empty after sanitize", "../../..", "requirements"},
		{"only slashes", "///", "requirements"},
		{"unicode preserved", "icd-中文", "icd-中文"},
		{"dots kept inside", "sow v2.final", "sow-v2.final"},
		{"multiple dashes collapse", "a---b", "a-b"},
		{"leading dashes trimmed", "---foo", "foo"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeForFilename(tc.input); got != tc.expected {
				t.Errorf("SanitizeForFilename(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}
