package registry

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/dialect"
	"github.com/tayjaybabee/jet-bridge/internal/model"
	"github.com/tayjaybabee/jet-bridge/internal/testutil"
)

var key = Key{Name: "main", Project: "shop", Token: "secret-token"}

func testModel() *model.Model {
	return model.New(&model.Table{
		Model:           "users",
		PrimaryKeyField: "id",
		Fields:          []model.Column{{Name: "id", PrimaryKey: true}, {Name: "email"}},
		Relations:       []model.Relation{{Name: "orders_collection"}},
	})
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{Key{Name: "main"}, "main"},
		{Key{Name: "main", Project: "p"}, "main/p"},
		{Key{Name: "main", Project: "p", Token: "t"}, "main/p/****"},
		{Key{Project: "p", Token: "t"}, "p/****"},
		{key, "main/shop/secr****"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// isPending reports whether a reflection for k is in flight.
func isPending(r *Registry, k Key) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pending[k]
	return ok
}

func TestKeyNeverLeaksToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("reflecting schema", "connection", key)
	logger.With("connection", key).Warn("skipped table")

	r := New()
	if _, err := r.Begin(key, nil); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	_, err := r.Begin(key, nil)
	testutil.AssertError(t, err, alerr.ErrReflectionInFlight)

	var e *alerr.Error
	if !errors.As(err, &e) {
		t.Fatalf("error %T is not *alerr.Error", err)
	}
	outputs := map[string]string{
		"log":     buf.String(),
		"error":   err.Error(),
		"context": fmt.Sprint(e.GetContext()),
	}
	for name, out := range outputs {
		if strings.Contains(out, key.Token) {
			t.Errorf("%s output leaks the token: %s", name, out)
		}
		if !strings.Contains(out, "main/shop/secr****") {
			t.Errorf("%s output missing redacted key: %s", name, out)
		}
	}
}

func TestBeginInFlight(t *testing.T) {
	r := New()

	h, err := r.Begin(key, nil)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if !isPending(r, key) {
		t.Error("key should be pending")
	}

	_, err = r.Begin(key, nil)
	testutil.AssertError(t, err, alerr.ErrReflectionInFlight)

	other := Key{Name: "other"}
	if _, err := r.Begin(other, nil); err != nil {
		t.Errorf("distinct key should begin: %v", err)
	}

	_ = h.Fail(nil)
	if _, err := r.Begin(key, nil); err != nil {
		t.Errorf("Begin() after Fail error = %v", err)
	}
}

func TestPromote(t *testing.T) {
	r := New()
	tunnel := &Tunnel{Active: true, LocalAddress: "127.0.0.1:6000", RemoteAddress: "bastion:22"}
	h, _ := r.Begin(key, tunnel)
	_ = h.Advance(1, 1)

	conn, err := h.Promote(&Connection{
		Dialect:     dialect.Postgres(),
		Model:       testModel(),
		ConnectTime: 250 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Promote() error = %v", err)
	}
	if conn.Key != key || conn.InitStart != h.InitStart() || conn.Tunnel != tunnel {
		t.Errorf("promoted connection = %+v", conn)
	}
	if isPending(r, key) {
		t.Error("pending entry should be removed")
	}

	got, ok := r.Get(key)
	if !ok || got != conn {
		t.Error("Get() should return the promoted connection")
	}

	t.Run("irreversible", func(t *testing.T) {
		_, err := h.Promote(&Connection{})
		testutil.AssertError(t, err, alerr.ErrStaleHandle)
		testutil.AssertError(t, h.Advance(2, 2), alerr.ErrStaleHandle)
		if got, _ := r.Get(key); got != conn {
			t.Error("stale promote replaced the connection")
		}
	})

	t.Run("remove", func(t *testing.T) {
		removed, ok := r.Remove(key)
		if !ok || removed != conn {
			t.Error("Remove() should return the connection")
		}
		if _, ok := r.Get(key); ok {
			t.Error("connection should be gone")
		}
	})
}

func TestRefreshKeepsServingActive(t *testing.T) {
	r := New()
	h, _ := r.Begin(key, nil)
	first, _ := h.Promote(&Connection{Model: testModel()})

	h2, err := r.Begin(key, nil)
	if err != nil {
		t.Fatalf("Begin() on active key error = %v", err)
	}
	if got, _ := r.Get(key); got != first {
		t.Error("active connection should be served while refreshing")
	}

	cause := errors.New("boom")
	if err := h2.Fail(cause); err != cause {
		t.Errorf("Fail() = %v, want cause", err)
	}
	if got, _ := r.Get(key); got != first {
		t.Error("failed refresh should leave the active connection")
	}
	if isPending(r, key) {
		t.Error("failed refresh should leave no pending entry")
	}
}

func TestAdvanceMonotonic(t *testing.T) {
	r := New()
	h, _ := r.Begin(key, nil)

	_ = h.Advance(0, 5)
	_ = h.Advance(3, 5)
	_ = h.Advance(2, 5)

	if p, total := h.Progress(); p != 3 || total != 5 {
		t.Errorf("Progress() = %d/%d, want 3/5", p, total)
	}
}

func TestSnapshot(t *testing.T) {
	r := New()

	pending, _ := r.Begin(Key{Name: "b", Token: "ab"}, nil)
	_ = pending.Advance(2, 7)

	h, _ := r.Begin(key, nil)
	m := testModel()
	fp, err := m.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	_, _ = h.Promote(&Connection{Dialect: dialect.SQLite(), Model: m, Fingerprint: fp, ReflectTime: 2 * time.Second})

	snap := r.Snapshot()
	if len(snap.Pending) != 1 || len(snap.Active) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}

	p := snap.Pending[0]
	if p.TablesProcessed != 2 || p.TablesTotal != 7 || p.Token != "****" {
		t.Errorf("pending = %+v", p)
	}

	a := snap.Active[0]
	if a.Tables != 1 || a.Columns != 2 || a.Relationships != 1 {
		t.Errorf("counts = %d/%d/%d", a.Tables, a.Columns, a.Relationships)
	}
	if a.Dialect != "sqlite" || a.ReflectTime != 2 || a.Fingerprint != fp.Root {
		t.Errorf("active = %+v", a)
	}
	if a.Token != "secr****" {
		t.Errorf("token = %q", a.Token)
	}

	_ = pending.Advance(5, 7)
	if snap.Pending[0].TablesProcessed != 2 {
		t.Error("snapshot should not change after it is taken")
	}
}

func TestConcurrentReflections(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	const workers = 50

	var mu sync.Mutex
	began := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := r.Begin(key, nil)
			if err != nil {
				if !alerr.Is(err, alerr.ErrReflectionInFlight) {
					t.Errorf("Begin() error = %v", err)
				}
				return
			}
			mu.Lock()
			began++
			mu.Unlock()

			for p := 0; p <= 10; p++ {
				_ = h.Advance(p, 10)
				_ = r.Snapshot()
			}
			if _, err := h.Promote(&Connection{Model: testModel()}); err != nil {
				t.Errorf("Promote() error = %v", err)
			}
		}()
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := r.Snapshot()
			for _, p := range snap.Pending {
				if p.TablesProcessed > p.TablesTotal {
					t.Errorf("inconsistent progress %d/%d", p.TablesProcessed, p.TablesTotal)
				}
			}
		}()
	}

	wg.Wait()

	if began == 0 {
		t.Fatal("no reflection began")
	}
	if isPending(r, key) {
		t.Error("no reflection should remain pending")
	}
	if _, ok := r.Get(key); !ok {
		t.Error("key should be active")
	}
}
