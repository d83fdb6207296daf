// Package reflector discovers the tables of a live connection and builds
// the descriptor model installed for it. Tables that fail structural
// introspection are skipped with a warning; an allow-list naming absent
// tables fails the whole reflection.
package reflector

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/describe"
	"github.com/tayjaybabee/jet-bridge/internal/introspect"
	"github.com/tayjaybabee/jet-bridge/internal/model"
)

// Progress receives the processed/total counters while a reflection runs.
type Progress interface {
	Advance(processed, total int) error
}

// Options controls a single reflection.
type Options struct {
	// Only restricts reflection to these tables. Every name must exist.
	Only []string

	// ExtendExisting re-reflects tables already present in Existing.
	ExtendExisting bool

	// Views includes database views in the candidate set.
	Views bool

	// Existing is the model being extended, if any.
	Existing *model.Model

	Overlay  describe.Overlay
	Progress Progress
	Logger   *slog.Logger
}

// Warning records a table skipped during reflection.
type Warning struct {
	Table string
	Err   error
}

// Result is the outcome of a successful reflection.
type Result struct {
	Model    *model.Model
	Warnings []Warning

	// Processed is the number of candidates handled, skipped ones included.
	Processed int
	Total     int
}

// Reflector builds descriptor models from a catalog.
type Reflector struct {
	catalog introspect.Catalog
}

// New creates a reflector. Returns nil if catalog is nil.
func New(catalog introspect.Catalog) *Reflector {
	if catalog == nil {
		return nil
	}
	return &Reflector{catalog: catalog}
}

// Reflect runs the reflection algorithm. The returned model contains the
// tables of opts.Existing plus every candidate that could be introspected.
func (r *Reflector) Reflect(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	available, views, err := r.available(ctx, opts.Views)
	if err != nil {
		return nil, err
	}

	candidates, err := selectCandidates(available, opts)
	if err != nil {
		return nil, err
	}

	total := len(candidates)
	logger.Info("reflecting schema",
		"dialect", r.catalog.Dialect().Name(),
		"available", len(available),
		"candidates", total)

	if err := advance(opts.Progress, 0, total); err != nil {
		return nil, err
	}

	pks := newPrimaryKeyCache(ctx, r.catalog, opts.Existing)
	result := &Result{Total: total}
	var reflected []*model.Table

	for i, name := range candidates {
		logger.Debug("analyzing table", "table", name, "position", i+1, "total", total)

		table, err := r.reflectTable(ctx, name, pks, logger)
		if err != nil {
			if !introspect.IsStructural(err) {
				return nil, err
			}
			logger.Warn("skipping table", "table", name, "error", err)
			result.Warnings = append(result.Warnings, Warning{Table: name, Err: err})
		} else {
			table.View = table.View || views[name]
			reflected = append(reflected, table)
			pks.set(name, table.PrimaryKeyField)
		}

		result.Processed = i + 1
		if err := advance(opts.Progress, result.Processed, total); err != nil {
			return nil, err
		}
	}

	all := append(opts.Existing.Tables(), reflected...)
	result.Model = model.New(describe.Assemble(dedupe(all), opts.Overlay)...)

	logger.Info("reflection complete",
		"tables", result.Model.Len(),
		"skipped", len(result.Warnings),
		"duration", time.Since(start))

	return result, nil
}

// reflectTable introspects one table and maps it to a descriptor, forcing
// the first column to be the primary key when none is declared.
func (r *Reflector) reflectTable(ctx context.Context, name string, pks *primaryKeyCache, logger *slog.Logger) (*model.Table, error) {
	raw, err := r.catalog.IntrospectTable(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(raw.Columns) == 0 {
		return nil, alerr.New(alerr.ErrIntrospection, "table has no readable columns").WithTable(name)
	}

	synthetic := len(raw.PrimaryKey()) == 0
	if synthetic {
		raw.Columns[0].IsPrimaryKey = true
		logger.Warn("table has no primary key, using first column",
			"table", name,
			"column", raw.Columns[0].Name)
	}

	table := describe.Table(r.catalog.Dialect().Name(), raw, pks.get)
	table.PrimaryKeySynthetic = synthetic

	if err := table.Validate(); err != nil {
		return nil, alerr.Wrap(alerr.ErrIntrospection, err, "table descriptor is invalid").WithTable(name)
	}
	return table, nil
}

// available lists tables, then views when requested, in catalog order.
func (r *Reflector) available(ctx context.Context, withViews bool) ([]string, map[string]bool, error) {
	tables, err := r.catalog.ListTables(ctx)
	if err != nil {
		return nil, nil, err
	}
	views := make(map[string]bool)
	if !withViews {
		return tables, views, nil
	}

	viewNames, err := r.catalog.ListViews(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, v := range viewNames {
		views[v] = true
	}
	return append(tables, viewNames...), views, nil
}

// selectCandidates intersects the allow-list with the available names, in
// catalog order, dropping tables already modeled unless ExtendExisting.
func selectCandidates(available []string, opts Options) ([]string, error) {
	var allowed map[string]bool
	if len(opts.Only) > 0 {
		allowed = make(map[string]bool, len(opts.Only))
		var missing []string
		for _, name := range opts.Only {
			if !slices.Contains(available, name) {
				if !slices.Contains(missing, name) {
					missing = append(missing, name)
				}
				continue
			}
			allowed[name] = true
		}
		if len(missing) > 0 {
			slices.Sort(missing)
			return nil, alerr.New(alerr.ErrSchemaMissingTables, "requested tables not found").
				With("missing", missing).
				WithHint(alerr.SuggestSimilar(missing, available))
		}
	}

	seen := make(map[string]bool, len(available))
	var candidates []string
	for _, name := range available {
		if seen[name] {
			continue
		}
		seen[name] = true
		if allowed != nil && !allowed[name] {
			continue
		}
		if !opts.ExtendExisting && opts.Existing.Has(name) {
			continue
		}
		candidates = append(candidates, name)
	}
	return candidates, nil
}

// dedupe keeps the last table per name at the position of the first.
func dedupe(tables []*model.Table) []*model.Table {
	return model.New(tables...).Tables()
}

func advance(p Progress, processed, total int) error {
	if p == nil {
		return nil
	}
	return p.Advance(processed, total)
}

// primaryKeyCache resolves the primary key of referenced tables, preferring
// tables reflected in this run, then the existing model, then the catalog.
type primaryKeyCache struct {
	ctx      context.Context
	catalog  introspect.Catalog
	existing *model.Model
	keys     map[string]string
}

func newPrimaryKeyCache(ctx context.Context, catalog introspect.Catalog, existing *model.Model) *primaryKeyCache {
	return &primaryKeyCache{
		ctx:      ctx,
		catalog:  catalog,
		existing: existing,
		keys:     make(map[string]string),
	}
}

func (c *primaryKeyCache) set(table, pk string) {
	c.keys[table] = pk
}

func (c *primaryKeyCache) get(table string) string {
	if pk, ok := c.keys[table]; ok {
		return pk
	}
	if t, ok := c.existing.Get(table); ok {
		c.keys[table] = t.PrimaryKeyField
		return t.PrimaryKeyField
	}

	var pk string
	cols, err := c.catalog.PrimaryKey(c.ctx, table)
	if err != nil {
		slog.Debug("cannot resolve referenced primary key", "table", table, "error", err)
	} else if len(cols) > 0 {
		pk = cols[0]
	}
	c.keys[table] = pk
	return pk
}
