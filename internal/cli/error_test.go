package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		checks []string
		absent []string
	}{
		{
			name: "coded_with_context",
			err: alerr.New(alerr.ErrSchemaMissingTables, "requested tables not found").
				With("missing", []string{"ghost"}).
				WithHint("ghost: did you mean 'hosts'?"),
			checks: []string{"error[E1001]: requested tables not found", "= missing: [ghost]", "= help: ghost: did you mean 'hosts'?"},
			absent: []string{"= hint"},
		},
		{
			name:   "coded_with_cause",
			err:    alerr.Wrap(alerr.ErrSQLConnection, errors.New("dial tcp: refused"), "failed to connect"),
			checks: []string{"error[E4002]: failed to connect", "= cause: dial tcp: refused"},
		},
		{
			name:   "bare",
			err:    alerr.New(alerr.ErrConnectionNotFound, "connection not found"),
			checks: []string{"error[E3002]: connection not found"},
			absent: []string{"|"},
		},
		{
			name:   "generic",
			err:    errors.New("boom"),
			checks: []string{"error: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatError(tt.err)
			for _, want := range tt.checks {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q\ngot:\n%s", want, out)
				}
			}
			for _, bad := range tt.absent {
				if strings.Contains(out, bad) {
					t.Errorf("output should not contain %q\ngot:\n%s", bad, out)
				}
			}
		})
	}

	if FormatError(nil) != "" {
		t.Error("FormatError(nil) should be empty")
	}
}

func TestFormatErrorWrapped(t *testing.T) {
	inner := alerr.New(alerr.ErrReflectionInFlight, "reflection already in progress")
	out := FormatError(errors.Join(errors.New("outer"), inner))
	if !strings.Contains(out, "E3001") {
		t.Errorf("wrapped coded error not found:\n%s", out)
	}
}
