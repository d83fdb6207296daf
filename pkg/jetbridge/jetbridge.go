package jetbridge

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/panjf2000/ants/v2"
	_ "modernc.org/sqlite"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/describe"
	"github.com/tayjaybabee/jet-bridge/internal/dialect"
	"github.com/tayjaybabee/jet-bridge/internal/introspect"
	"github.com/tayjaybabee/jet-bridge/internal/metrics"
	"github.com/tayjaybabee/jet-bridge/internal/model"
	"github.com/tayjaybabee/jet-bridge/internal/overlay"
	"github.com/tayjaybabee/jet-bridge/internal/reflector"
	"github.com/tayjaybabee/jet-bridge/internal/registry"
)

// Client is the main entry point of the bridge. It reflects databases on a
// bounded worker pool, keeps the reflected models in a registry, and serves
// descriptor, record and sibling queries against them.
//
// Create a new client with New() and close it with Close() when done.
//
// Example:
//
//	client, err := jetbridge.New(jetbridge.WithOverlayFile("overlay.yaml"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	conn, err := client.Connect(ctx, jetbridge.ConnectionConfig{
//	    Key:         registry.Key{Name: "main"},
//	    DatabaseURL: "postgres://localhost/shop",
//	})
type Client struct {
	config   *Config
	registry *registry.Registry
	pool     *ants.Pool
	overlay  describe.Overlay
	watcher  *overlay.Watcher
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// scopes remembers the table scope of each connection for refreshes.
	scopes sync.Map // registry.Key -> scope
}

// scope is the part of a ConnectionConfig a refresh reuses.
type scope struct {
	only  []string
	views bool
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &Config{
		Workers:        4,
		ConnectTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, alerr.Wrap(alerr.EInternalError, err, "failed to create worker pool")
	}

	c := &Client{
		config:   cfg,
		registry: registry.New(),
		pool:     pool,
		metrics:  metrics.New(cfg.Registerer),
		logger:   cfg.Logger,
	}

	switch {
	case cfg.OverlayFile != "":
		c.watcher = overlay.NewWatcher(cfg.OverlayFile, cfg.Logger)
		c.watcher.OnChange(func(*overlay.Static) {
			c.logger.Info("overlay changed, refresh connections to apply it")
		})
		c.overlay = c.watcher
	case cfg.Overlay != nil:
		c.overlay = cfg.Overlay
	default:
		c.overlay = overlay.Empty()
	}

	return c, nil
}

// Close stops the worker pool and closes every active connection.
func (c *Client) Close() error {
	_ = c.pool.ReleaseTimeout(3 * time.Second)

	var firstErr error
	for _, conn := range c.registry.Active() {
		c.registry.Remove(conn.Key)
		if err := conn.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.metrics.ActiveConnections.Set(0)
	return firstErr
}

// Metrics returns the client's collectors.
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// Watch reloads the overlay file whenever it changes until ctx is done.
// It returns immediately when no overlay file is configured.
func (c *Client) Watch(ctx context.Context) error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.Run(ctx)
}

// Reflection is a reflection scheduled on the worker pool.
type Reflection struct {
	key      registry.Key
	done     chan struct{}
	conn     *registry.Connection
	warnings []reflector.Warning
	err      error
}

// Key returns the connection key being reflected.
func (r *Reflection) Key() registry.Key {
	return r.key
}

// Done is closed when the reflection has finished.
func (r *Reflection) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the reflection finishes or ctx is done. The
// reflection keeps running when ctx ends first.
func (r *Reflection) Wait(ctx context.Context) (*registry.Connection, error) {
	select {
	case <-r.done:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Warnings returns the tables skipped by a finished reflection.
func (r *Reflection) Warnings() []reflector.Warning {
	select {
	case <-r.done:
		return r.warnings
	default:
		return nil
	}
}

// job is one unit of reflection work.
type job struct {
	key      registry.Key
	tunnel   *registry.Tunnel
	progress reflector.Progress
	only     []string
	views    bool

	// open returns the database to reflect. ownsDB is false when the
	// database belongs to an active connection being refreshed.
	open   func(ctx context.Context) (db *sql.DB, d dialect.Dialect, connectTime time.Duration, err error)
	ownsDB bool

	existing *model.Model
	extend   bool
}

// Connect reflects the database described by cc and installs the result.
// It blocks until the reflection finishes or ctx is done.
func (c *Client) Connect(ctx context.Context, cc ConnectionConfig) (*registry.Connection, error) {
	r, err := c.Start(ctx, cc)
	if err != nil {
		return nil, err
	}
	return r.Wait(ctx)
}

// Start schedules a reflection of the database described by cc and returns
// without waiting. ctx governs the reflection itself.
func (c *Client) Start(ctx context.Context, cc ConnectionConfig) (*Reflection, error) {
	if cc.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	driver, dialectName, err := resolveDriver(cc.DatabaseURL, cc.Driver)
	if err != nil {
		return nil, err
	}

	return c.start(ctx, &job{
		key:      cc.Key,
		tunnel:   cc.Tunnel,
		progress: cc.Progress,
		only:     cc.Only,
		views:    cc.Views,
		ownsDB:   true,
		open: func(ctx context.Context) (*sql.DB, dialect.Dialect, time.Duration, error) {
			return c.openDatabase(ctx, cc.DatabaseURL, driver, dialectName)
		},
	})
}

// Refresh re-reflects an active connection, extending its model. The
// previous model keeps being served until the new one is installed.
func (c *Client) Refresh(ctx context.Context, key registry.Key) (*registry.Connection, error) {
	r, err := c.StartRefresh(ctx, key)
	if err != nil {
		return nil, err
	}
	return r.Wait(ctx)
}

// StartRefresh schedules a refresh and returns without waiting.
func (c *Client) StartRefresh(ctx context.Context, key registry.Key) (*Reflection, error) {
	conn, err := c.connection(key)
	if err != nil {
		return nil, err
	}
	sc, _ := c.scopes.Load(key)
	prevScope, _ := sc.(scope)

	return c.start(ctx, &job{
		key:      key,
		tunnel:   conn.Tunnel,
		only:     prevScope.only,
		views:    prevScope.views,
		existing: conn.Model,
		extend:   true,
		open: func(context.Context) (*sql.DB, dialect.Dialect, time.Duration, error) {
			return conn.DB, conn.Dialect, conn.ConnectTime, nil
		},
	})
}

func (c *Client) start(ctx context.Context, j *job) (*Reflection, error) {
	h, err := c.registry.Begin(j.key, j.tunnel)
	if err != nil {
		return nil, err
	}
	c.metrics.PendingReflections.Inc()

	r := &Reflection{key: j.key, done: make(chan struct{})}
	if err := c.pool.Submit(func() { c.run(ctx, h, j, r) }); err != nil {
		c.metrics.PendingReflections.Dec()
		return nil, h.Fail(alerr.Wrap(alerr.EInternalError, err, "failed to schedule reflection").
			WithConnection(j.key.String()))
	}
	return r, nil
}

// run executes one reflection on a pool worker and settles its handle.
func (c *Client) run(ctx context.Context, h *registry.Handle, j *job, r *Reflection) {
	defer close(r.done)
	defer c.metrics.PendingReflections.Dec()
	defer func() {
		if v := recover(); v != nil {
			r.err = h.Fail(alerr.Newf(alerr.EInternalError, "reflection panicked: %v", v).
				WithConnection(j.key.String()))
		}
	}()

	if c.config.ReflectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ReflectTimeout)
		defer cancel()
	}
	logger := c.logger.With("connection", j.key)

	db, d, connectTime, err := j.open(ctx)
	if err != nil {
		c.metrics.ObserveReflection(0, 0, err)
		r.err = h.Fail(err)
		return
	}

	catalog := introspect.New(db, d)
	if catalog == nil {
		if j.ownsDB {
			db.Close()
		}
		err := fmt.Errorf("%w: %s", ErrUnsupportedDialect, d.Name())
		c.metrics.ObserveReflection(0, 0, err)
		r.err = h.Fail(err)
		return
	}

	start := time.Now()
	res, err := reflector.New(catalog).Reflect(ctx, reflector.Options{
		Only:           j.only,
		ExtendExisting: j.extend,
		Views:          j.views,
		Existing:       j.existing,
		Overlay:        c.overlay,
		Progress:       fanout{h, j.progress},
		Logger:         logger,
	})
	reflectTime := time.Since(start)

	if err != nil {
		c.metrics.ObserveReflection(reflectTime, 0, err)
		if j.ownsDB {
			db.Close()
		}
		r.err = h.Fail(schemaError(err))
		return
	}
	c.metrics.ObserveReflection(reflectTime, len(res.Warnings), nil)

	fp, err := res.Model.Fingerprint()
	if err != nil {
		logger.Warn("failed to fingerprint model", "error", err)
	}

	prev, _ := c.registry.Get(j.key)
	conn, err := h.Promote(&registry.Connection{
		DB:          db,
		Dialect:     d,
		Model:       res.Model,
		Fingerprint: fp,
		ConnectTime: connectTime,
		ReflectTime: reflectTime,
	})
	if err != nil {
		if j.ownsDB {
			db.Close()
		}
		r.err = err
		return
	}
	if prev != nil && prev.DB != db {
		prev.DB.Close()
	}
	c.scopes.Store(j.key, scope{only: j.only, views: j.views})
	c.metrics.ActiveConnections.Set(float64(len(c.registry.Active())))

	r.conn = conn
	r.warnings = res.Warnings
}

// fanout forwards progress to several receivers. Nil receivers are skipped.
type fanout []reflector.Progress

func (f fanout) Advance(processed, total int) error {
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Advance(processed, total); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect removes an active connection and closes its database.
func (c *Client) Disconnect(key registry.Key) error {
	conn, ok := c.registry.Remove(key)
	if !ok {
		return notFound(key)
	}
	c.scopes.Delete(key)
	c.metrics.ActiveConnections.Set(float64(len(c.registry.Active())))
	return conn.DB.Close()
}

// Status returns a snapshot of pending and active connections.
func (c *Client) Status() registry.Snapshot {
	return c.registry.Snapshot()
}

// Tables returns every table descriptor of a connection, hidden ones included.
func (c *Client) Tables(key registry.Key) ([]*model.Table, error) {
	conn, err := c.connection(key)
	if err != nil {
		return nil, err
	}
	return conn.Model.Tables(), nil
}

// Table returns one table descriptor by model name.
func (c *Client) Table(key registry.Key, name string) (*model.Table, error) {
	conn, err := c.connection(key)
	if err != nil {
		return nil, err
	}
	return lookupTable(conn, name)
}

func (c *Client) connection(key registry.Key) (*registry.Connection, error) {
	conn, ok := c.registry.Get(key)
	if !ok {
		return nil, notFound(key)
	}
	return conn, nil
}

func lookupTable(conn *registry.Connection, name string) (*model.Table, error) {
	t, ok := conn.Model.Get(name)
	if !ok {
		return nil, alerr.New(alerr.ErrSchemaMissingTables, "table not found").
			WithTable(name).
			WithHint(alerr.SuggestSimilar([]string{name}, conn.Model.Names()))
	}
	return t, nil
}

func notFound(key registry.Key) error {
	return alerr.New(alerr.ErrConnectionNotFound, "connection not found").
		WithConnection(key.String())
}

// openDatabase opens and pings a database.
func (c *Client) openDatabase(ctx context.Context, url, driver, dialectName string) (*sql.DB, dialect.Dialect, time.Duration, error) {
	d := dialect.Get(dialectName)
	if d == nil {
		return nil, nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedDialect, dialectName)
	}

	start := time.Now()
	dsn := url
	if dialectName == "sqlite" {
		dsn = convertSQLiteURL(url)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, 0, &ConnectionError{URL: redactURL(url), Dialect: dialectName, Cause: err}
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, 0, &ConnectionError{
			URL:     redactURL(url),
			Dialect: dialectName,
			Cause:   alerr.Wrap(alerr.ErrSQLConnection, err, "failed to ping database"),
		}
	}

	return db, d, time.Since(start), nil
}

// resolveDriver returns the database/sql driver name and dialect for a URL.
// An explicit driver wins over detection.
func resolveDriver(url, driver string) (driverName, dialectName string, err error) {
	switch strings.ToLower(driver) {
	case "":
		if detectDialect(url) == "sqlite" {
			return "sqlite", "sqlite", nil
		}
		return "pgx", "postgres", nil
	case "pgx":
		return "pgx", "postgres", nil
	case "pq", "postgres":
		return "postgres", "postgres", nil
	case "sqlite", "sqlite3":
		return "sqlite", "sqlite", nil
	default:
		return "", "", fmt.Errorf("%w: driver %s", ErrUnsupportedDialect, driver)
	}
}

// detectDialect auto-detects the database dialect from the connection URL.
//
// Detection rules:
//   - postgres:// or postgresql:// -> postgres
//   - sqlite:// or file: or path ending with .db/.sqlite/.sqlite3 -> sqlite
func detectDialect(url string) string {
	url = strings.ToLower(url)

	switch {
	case strings.HasPrefix(url, "postgres://"),
		strings.HasPrefix(url, "postgresql://"):
		return "postgres"

	case strings.HasPrefix(url, "sqlite://"),
		strings.HasPrefix(url, "sqlite3://"),
		strings.HasPrefix(url, "file:"):
		return "sqlite"

	case strings.HasSuffix(url, ".db"),
		strings.HasSuffix(url, ".sqlite"),
		strings.HasSuffix(url, ".sqlite3"):
		return "sqlite"
	}

	return "postgres"
}

// convertSQLiteURL converts a sqlite:// URL to a file path. file: URIs are
// kept so their query parameters (mode=memory, cache=shared) still apply.
func convertSQLiteURL(url string) string {
	url = strings.TrimPrefix(url, "sqlite://")
	return strings.TrimPrefix(url, "sqlite3://")
}

// redactURL removes the password from a database URL for logging.
func redactURL(url string) string {
	// Pattern: ://user:password@
	start := strings.Index(url, "://")
	if start == -1 {
		return url
	}
	start += 3

	end := strings.Index(url[start:], "@")
	if end == -1 {
		return url
	}
	end += start

	credentials := url[start:end]
	if colonIdx := strings.Index(credentials, ":"); colonIdx != -1 {
		user := credentials[:colonIdx]
		return url[:start] + user + ":***@" + url[end+1:]
	}

	return url
}
