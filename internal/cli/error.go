package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
)

// FormatError formats an error for terminal display:
//
//	error[E1001]: requested tables not found
//	   |
//	   = missing: [ghost]
//	   = help: ghost: did you mean 'hosts'?
//	   = cause: ...
//
// Errors that are not *alerr.Error print as "error: message".
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var ae *alerr.Error
	if !errors.As(err, &ae) {
		return Error("error") + ": " + err.Error() + "\n"
	}

	var b strings.Builder
	b.WriteString(Error("error"))
	b.WriteString("[")
	b.WriteString(Code(string(ae.GetCode())))
	b.WriteString("]: ")
	b.WriteString(ae.GetMessage())
	b.WriteString("\n")

	ctx := ae.GetContext()
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		if k != "hint" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	hint, _ := ctx["hint"].(string)
	cause := ae.GetCause()
	if len(keys) == 0 && hint == "" && cause == nil {
		return b.String()
	}

	b.WriteString("   |\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "   = %s: %v\n", Dim(k), ctx[k])
	}
	if hint != "" {
		fmt.Fprintf(&b, "   = %s: %s\n", Help("help"), hint)
	}
	if cause != nil {
		fmt.Fprintf(&b, "   = %s: %s\n", Dim("cause"), firstLine(cause.Error()))
	}
	return b.String()
}

// FormatWarning formats a warning line.
func FormatWarning(msg string) string {
	return Warning("warning") + ": " + msg + "\n"
}

// FormatSuccess formats a success line.
func FormatSuccess(msg string) string {
	return Success("✓") + " " + msg + "\n"
}

// firstLine keeps nested coded errors from repeating their context.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
