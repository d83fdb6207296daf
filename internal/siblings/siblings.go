// Package siblings finds the neighbors of a row under a deterministic
// ordering, for previous/next navigation.
package siblings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/dialect"
	"github.com/tayjaybabee/jet-bridge/internal/model"
	"github.com/tayjaybabee/jet-bridge/internal/session"
)

// MaxRows is the largest estimated result size navigation is attempted on.
const MaxRows = 10000

const rankColumn = "jet_bridge_rank"

// Row is a neighbor projected to its primary key.
type Row map[string]any

// Siblings holds the neighbors of a row. The zero value is the empty
// result and encodes as {}.
type Siblings struct {
	Prev Row
	Next Row

	found bool
}

// Empty reports whether navigation was skipped or the row was not found.
func (s Siblings) Empty() bool {
	return !s.found
}

// MarshalJSON encodes {"prev": ..., "next": ...}, or {} when empty.
func (s Siblings) MarshalJSON() ([]byte, error) {
	if !s.found {
		return []byte("{}"), nil
	}
	return json.Marshal(struct {
		Prev Row `json:"prev"`
		Next Row `json:"next"`
	}{s.Prev, s.Next})
}

// Navigator runs sibling lookups for one dialect.
type Navigator struct {
	dialect dialect.Dialect
	maxRows int64
}

// New creates a navigator using the default row bound.
func New(d dialect.Dialect) *Navigator {
	return &Navigator{dialect: d, maxRows: MaxRows}
}

// Find returns the rows before and after the row whose primary key is pk.
// base selects from the table with any filters applied; its columns,
// ordering and limits are replaced. ordering falls back to the primary
// key, and the primary key is always the final tiebreaker.
func (n *Navigator) Find(ctx context.Context, s *session.Session, t *model.Table, base sq.SelectBuilder, ordering []model.Order, pk any) (Siblings, error) {
	base = base.RemoveColumns().RemoveLimit().RemoveOffset()

	estimate, err := EstimateRows(ctx, s, n.dialect, base.Column("1"))
	if err != nil {
		return Siblings{}, err
	}
	if estimate > n.maxRows {
		return Siblings{}, nil
	}

	orderBy, err := n.orderBy(t, t.DeterministicOrdering(ordering))
	if err != nil {
		return Siblings{}, err
	}

	rank, err := n.rank(ctx, s, t, base, orderBy, pk)
	if errors.Is(err, sql.ErrNoRows) {
		return Siblings{}, nil
	}
	if err != nil {
		return Siblings{}, err
	}

	offset, limit := window(rank)
	keys, err := n.scan(ctx, s, t, base, orderBy, offset, limit)
	if err != nil {
		return Siblings{}, err
	}

	res := Siblings{found: true}
	pkName := t.PrimaryKeyField
	if rank > 1 {
		if len(keys) > 0 {
			res.Prev = Row{pkName: keys[0]}
		}
		if len(keys) > 2 {
			res.Next = Row{pkName: keys[2]}
		}
	} else if len(keys) > 1 {
		res.Next = Row{pkName: keys[1]}
	}
	return res, nil
}

// window returns the offset and limit that cover rank-1..rank+1.
func window(rank int64) (offset, limit uint64) {
	if rank > 1 {
		return uint64(rank - 2), 3
	}
	return 0, 2
}

func (n *Navigator) orderBy(t *model.Table, ordering []model.Order) (string, error) {
	terms := make([]string, 0, len(ordering))
	for _, o := range ordering {
		col, ok := t.Column(o.Field)
		if !ok {
			return "", alerr.New(alerr.ErrUnknownField, "unknown ordering field").
				WithTable(t.Model).
				WithColumn(o.Field)
		}
		term := n.dialect.QuoteIdent(col.DBColumn)
		if o.Desc {
			term += " DESC"
		} else {
			term += " ASC"
		}
		terms = append(terms, term)
	}
	return strings.Join(terms, ", "), nil
}

func (n *Navigator) pkColumn(t *model.Table) (string, error) {
	pk := t.PrimaryKey()
	if pk == nil {
		return "", alerr.New(alerr.ErrSchemaInvalid, "table has no primary key").WithTable(t.Model)
	}
	return n.dialect.QuoteIdent(pk.DBColumn), nil
}

// rank returns the 1-based position of pk under orderBy.
func (n *Navigator) rank(ctx context.Context, s *session.Session, t *model.Table, base sq.SelectBuilder, orderBy string, pk any) (int64, error) {
	pkCol, err := n.pkColumn(t)
	if err != nil {
		return 0, err
	}

	ranked := base.Columns(
		pkCol,
		fmt.Sprintf("ROW_NUMBER() OVER (ORDER BY %s) AS %s", orderBy, rankColumn),
	)
	query := sq.Select(rankColumn).
		FromSelect(ranked, "ranked").
		Where(sq.Eq{"ranked." + pkCol: pk}).
		PlaceholderFormat(n.dialect.Placeholder())

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, alerr.Wrap(alerr.EInternalError, err, "failed to build rank query")
	}

	var rank int64
	if err := s.QueryRow(ctx, sqlStr, args, &rank); err != nil {
		return 0, err
	}
	return rank, nil
}

// scan returns the primary keys of the rows in the window.
func (n *Navigator) scan(ctx context.Context, s *session.Session, t *model.Table, base sq.SelectBuilder, orderBy string, offset, limit uint64) ([]any, error) {
	pkCol, err := n.pkColumn(t)
	if err != nil {
		return nil, err
	}

	query := base.Columns(pkCol).
		OrderBy(orderBy).
		Offset(offset).
		Limit(limit).
		PlaceholderFormat(n.dialect.Placeholder())

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, alerr.Wrap(alerr.EInternalError, err, "failed to build scan query")
	}

	rows, err := s.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}

	keys, err := scanKeys(rows)
	if err != nil {
		return nil, s.Fail(alerr.Wrap(alerr.ErrSQLExecution, err, "failed to read rows").WithSQL(sqlStr))
	}
	return keys, nil
}

// scanKeys reads a single column from every row and closes rows.
func scanKeys(rows *sql.Rows) ([]any, error) {
	defer rows.Close()

	var keys []any
	for rows.Next() {
		var key any
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		if b, ok := key.([]byte); ok {
			key = string(b)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
