package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
)

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeSQL collapses whitespace and upper-cases a SQL string for comparison.
func NormalizeSQL(sql string) string {
	return strings.ToUpper(strings.TrimSpace(whitespace.ReplaceAllString(sql, " ")))
}

// AssertSQL compares two SQL strings after normalizing them.
func AssertSQL(t *testing.T, got, want string) {
	t.Helper()

	if NormalizeSQL(got) != NormalizeSQL(want) {
		t.Errorf("SQL mismatch:\ngot:  %s\nwant: %s", got, want)
	}
}

// AssertError checks that an error has the expected error code.
func AssertError(t *testing.T, err error, code alerr.Code) {
	t.Helper()

	if err == nil {
		t.Errorf("expected error with code %s, got nil", code)
		return
	}
	if got := alerr.GetErrorCode(err); got != code {
		t.Errorf("expected error code %s, got %s\nerror: %v", code, got, err)
	}
}

// AssertErrorContains checks that an error message contains a substring.
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()

	if err == nil {
		t.Errorf("expected error containing %q, got nil", substr)
		return
	}
	if !strings.Contains(err.Error(), substr) {
		t.Errorf("error message does not contain %q\ngot: %v", substr, err)
	}
}

// WriteFile writes content to a file, creating parent directories as needed.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create parent directories: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}
