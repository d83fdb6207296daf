package describe

import (
	"regexp"
	"strings"

	"github.com/tayjaybabee/jet-bridge/internal/model"
)

var (
	castLiteralPattern = regexp.MustCompile(`^'(?P<value>.+)'::(?P<type>.+)$`)
	nextvalPattern     = regexp.MustCompile(`^nextval\((?P<value>.+)\)$`)
)

// ParseDefault recognizes a server-side default expression. Unrecognized
// expressions yield nil.
func ParseDefault(expr string) *model.DefaultSpec {
	expr = strings.TrimSpace(expr)
	for len(expr) > 1 && expr[0] == '(' && expr[len(expr)-1] == ')' && balanced(expr[1:len(expr)-1]) {
		expr = strings.TrimSpace(expr[1 : len(expr)-1])
	}
	if expr == "" {
		return nil
	}

	switch strings.ToLower(expr) {
	case "now()", "current_timestamp", "transaction_timestamp()", "datetime('now')":
		return &model.DefaultSpec{Kind: model.DefaultDateTimeNow}
	case "uuid_generate_v4()", "gen_random_uuid()":
		return &model.DefaultSpec{Kind: model.DefaultUUID}
	case "true":
		return &model.DefaultSpec{Kind: model.DefaultValue, Value: true}
	case "false":
		return &model.DefaultSpec{Kind: model.DefaultValue, Value: false}
	}

	if m := castLiteralPattern.FindStringSubmatch(expr); m != nil {
		value := strings.ReplaceAll(m[1], "''", "'")
		return &model.DefaultSpec{Kind: model.DefaultValue, Value: value}
	}

	if m := nextvalPattern.FindStringSubmatch(expr); m != nil {
		return &model.DefaultSpec{Kind: model.DefaultSequence, Value: sequenceName(m[1])}
	}

	return nil
}

// sequenceName reduces a nextval argument such as 'users_id_seq'::regclass
// to users_id_seq.
func sequenceName(arg string) string {
	arg = strings.TrimSpace(arg)
	if i := strings.Index(arg, "::"); i >= 0 {
		arg = arg[:i]
	}
	return strings.Trim(arg, `'"`)
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
