// Package registry tracks connection state: reflections in flight with their
// progress counters, and active connections with their installed model.
// A key moves Pending -> Active on promote, or Pending -> gone on fail.
package registry

import (
	"cmp"
	"database/sql"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/dialect"
	"github.com/tayjaybabee/jet-bridge/internal/model"
)

// Key identifies a connection.
type Key struct {
	Name    string
	Project string
	Token   string
}

// String returns "name/project/token" with empty parts omitted and the
// token redacted. It is safe to log and to return to clients.
func (k Key) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{k.Name, k.Project, RedactToken(k.Token)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// LogValue renders the key for slog with the token redacted.
func (k Key) LogValue() slog.Value {
	return slog.StringValue(k.String())
}

// compare orders keys by name, project, then raw token.
func (k Key) compare(other Key) int {
	return cmp.Or(
		strings.Compare(k.Name, other.Name),
		strings.Compare(k.Project, other.Project),
		strings.Compare(k.Token, other.Token),
	)
}

// Tunnel describes the transport a connection is reached through.
type Tunnel struct {
	Active        bool   `json:"is_active"`
	LocalAddress  string `json:"local_address"`
	RemoteAddress string `json:"remote_address"`
}

// Connection is an active, reflected connection. It is not modified after
// promotion; a refresh installs a new Connection.
type Connection struct {
	Key     Key
	DB      *sql.DB
	Dialect dialect.Dialect
	Model   *model.Model
	Tunnel  *Tunnel

	// Fingerprint is derived from Model at promotion.
	Fingerprint *model.Fingerprint

	InitStart   time.Time
	ConnectTime time.Duration
	ReflectTime time.Duration
}

// Registry holds pending and active connections.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	pending map[Key]*Handle
	active  map[Key]*Connection
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		pending: make(map[Key]*Handle),
		active:  make(map[Key]*Connection),
	}
}

// Begin starts tracking a reflection for key. It fails with
// ErrReflectionInFlight while another reflection for key is pending.
func (r *Registry) Begin(key Key, tunnel *Tunnel) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pending[key]; exists {
		return nil, alerr.New(alerr.ErrReflectionInFlight, "reflection already in progress").
			WithConnection(key.String())
	}

	h := &Handle{
		registry:  r,
		key:       key,
		tunnel:    tunnel,
		initStart: time.Now(),
	}
	r.pending[key] = h
	return h, nil
}

// Get returns the active connection for key.
func (r *Registry) Get(key Key) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.active[key]
	return c, ok
}

// Remove drops the active connection for key and returns it so the caller
// can release its resources.
func (r *Registry) Remove(key Key) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.active[key]
	delete(r.active, key)
	return c, ok
}

// Active returns all active connections sorted by key.
func (r *Registry) Active() []*Connection {
	r.mu.RLock()
	out := make([]*Connection, 0, len(r.active))
	for _, c := range r.active {
		out = append(out, c)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Connection) int {
		return a.Key.compare(b.Key)
	})
	return out
}

// Handle is the pending side of one reflection. Advance may be called from
// the reflecting goroutine while other goroutines take snapshots.
type Handle struct {
	registry  *Registry
	key       Key
	tunnel    *Tunnel
	initStart time.Time

	processed atomic.Int64
	total     atomic.Int64
	settled   atomic.Bool
}

// Key returns the connection key the handle tracks.
func (h *Handle) Key() Key {
	return h.key
}

// InitStart returns when the reflection began.
func (h *Handle) InitStart() time.Time {
	return h.initStart
}

// Progress returns the current counters.
func (h *Handle) Progress() (processed, total int) {
	return int(h.processed.Load()), int(h.total.Load())
}

// Advance updates the progress counters. processed never decreases.
func (h *Handle) Advance(processed, total int) error {
	if h.settled.Load() {
		return h.stale()
	}
	h.total.Store(int64(total))
	for {
		cur := h.processed.Load()
		if int64(processed) <= cur || h.processed.CompareAndSwap(cur, int64(processed)) {
			return nil
		}
	}
}

// Promote removes the pending entry and installs conn as the active
// connection for the handle's key, replacing any previous one.
func (h *Handle) Promote(conn *Connection) (*Connection, error) {
	r := h.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending[h.key] != h || !h.settled.CompareAndSwap(false, true) {
		return nil, h.stale()
	}
	delete(r.pending, h.key)

	installed := *conn
	installed.Key = h.key
	installed.InitStart = h.initStart
	if installed.Tunnel == nil {
		installed.Tunnel = h.tunnel
	}
	r.active[h.key] = &installed
	return &installed, nil
}

// Fail removes the pending entry and returns cause. Nothing from the
// failed reflection stays visible.
func (h *Handle) Fail(cause error) error {
	r := h.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending[h.key] == h && h.settled.CompareAndSwap(false, true) {
		delete(r.pending, h.key)
	}
	return cause
}

func (h *Handle) stale() error {
	return alerr.New(alerr.ErrStaleHandle, "reflection handle already settled").
		WithConnection(h.key.String())
}
