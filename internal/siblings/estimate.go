package siblings

import (
	"context"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/dialect"
	"github.com/tayjaybabee/jet-bridge/internal/session"
)

// explainPlan is the part of EXPLAIN (FORMAT JSON) output that is read.
type explainPlan struct {
	Plan struct {
		Rows float64 `json:"Plan Rows"`
	} `json:"Plan"`
}

// EstimateRows returns the number of rows query would produce. PostgreSQL
// uses the planner estimate; SQLite counts exactly.
func EstimateRows(ctx context.Context, s *session.Session, d dialect.Dialect, query sq.SelectBuilder) (int64, error) {
	query = query.RemoveLimit().RemoveOffset().PlaceholderFormat(d.Placeholder())

	switch d.Name() {
	case "postgres":
		sqlStr, args, err := query.ToSql()
		if err != nil {
			return 0, alerr.Wrap(alerr.EInternalError, err, "failed to build estimate query")
		}
		var raw []byte
		explain := "EXPLAIN (FORMAT JSON) " + sqlStr
		if err := s.QueryRow(ctx, explain, args, &raw); err != nil {
			return 0, err
		}
		var plans []explainPlan
		if err := json.Unmarshal(raw, &plans); err != nil || len(plans) == 0 {
			return 0, s.Fail(alerr.Wrap(alerr.ErrSQLExecution, err, "unreadable query plan").WithSQL(explain))
		}
		return int64(plans[0].Plan.Rows), nil

	default:
		count := sq.Select("COUNT(*)").FromSelect(query, "estimate").PlaceholderFormat(d.Placeholder())
		sqlStr, args, err := count.ToSql()
		if err != nil {
			return 0, alerr.Wrap(alerr.EInternalError, err, "failed to build count query")
		}
		var n int64
		if err := s.QueryRow(ctx, sqlStr, args, &n); err != nil {
			return 0, err
		}
		return n, nil
	}
}
