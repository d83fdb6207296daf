package registry

import (
	"slices"
	"strings"
	"time"
)

// PendingStatus is a point-in-time view of a reflection in flight.
type PendingStatus struct {
	Name            string    `json:"name"`
	Project         string    `json:"project,omitempty"`
	Token           string    `json:"token,omitempty"`
	InitStart       time.Time `json:"init_start"`
	TablesProcessed int       `json:"tables_processed"`
	TablesTotal     int       `json:"tables_total"`
	Tunnel          *Tunnel   `json:"tunnel"`
}

// ActiveStatus is a point-in-time view of an active connection.
type ActiveStatus struct {
	Name          string    `json:"name"`
	Project       string    `json:"project,omitempty"`
	Token         string    `json:"token,omitempty"`
	Dialect       string    `json:"dialect"`
	Tables        int       `json:"tables"`
	Columns       int       `json:"columns"`
	Relationships int       `json:"relationships"`
	InitStart     time.Time `json:"init_start"`
	ConnectTime   float64   `json:"connect_time"`
	ReflectTime   float64   `json:"reflect_time"`
	Uptime        int64     `json:"uptime"`
	Fingerprint   string    `json:"fingerprint,omitempty"`
	Tunnel        *Tunnel   `json:"tunnel"`
}

// Snapshot is a consistent copy of the registry state.
type Snapshot struct {
	Pending []PendingStatus `json:"pending_connections"`
	Active  []ActiveStatus  `json:"connections"`
}

// Snapshot copies the registry state. The lock is held only while the maps
// are copied; progress counters are read without blocking Advance.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.pending))
	for _, h := range r.pending {
		handles = append(handles, h)
	}
	conns := make([]*Connection, 0, len(r.active))
	for _, c := range r.active {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	now := time.Now()
	snap := Snapshot{
		Pending: make([]PendingStatus, 0, len(handles)),
		Active:  make([]ActiveStatus, 0, len(conns)),
	}

	for _, h := range handles {
		processed, total := h.Progress()
		snap.Pending = append(snap.Pending, PendingStatus{
			Name:            h.key.Name,
			Project:         h.key.Project,
			Token:           RedactToken(h.key.Token),
			InitStart:       h.initStart,
			TablesProcessed: processed,
			TablesTotal:     total,
			Tunnel:          copyTunnel(h.tunnel),
		})
	}

	for _, c := range conns {
		tables, columns, relations := c.Model.Counts()
		st := ActiveStatus{
			Name:          c.Key.Name,
			Project:       c.Key.Project,
			Token:         RedactToken(c.Key.Token),
			Tables:        tables,
			Columns:       columns,
			Relationships: relations,
			InitStart:     c.InitStart,
			ConnectTime:   c.ConnectTime.Seconds(),
			ReflectTime:   c.ReflectTime.Seconds(),
			Uptime:        int64(now.Sub(c.InitStart).Seconds()),
			Tunnel:        copyTunnel(c.Tunnel),
		}
		if c.Dialect != nil {
			st.Dialect = c.Dialect.Name()
		}
		if c.Fingerprint != nil {
			st.Fingerprint = c.Fingerprint.Root
		}
		snap.Active = append(snap.Active, st)
	}

	slices.SortFunc(snap.Pending, func(a, b PendingStatus) int {
		return strings.Compare(a.Name+"/"+a.Project, b.Name+"/"+b.Project)
	})
	slices.SortFunc(snap.Active, func(a, b ActiveStatus) int {
		return strings.Compare(a.Name+"/"+a.Project, b.Name+"/"+b.Project)
	})
	return snap
}

// RedactToken keeps the first four characters of a token.
func RedactToken(token string) string {
	switch {
	case token == "":
		return ""
	case len(token) <= 4:
		return "****"
	default:
		return token[:4] + "****"
	}
}

func copyTunnel(t *Tunnel) *Tunnel {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
