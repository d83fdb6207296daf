package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tayjaybabee/jet-bridge/internal/model"
	"github.com/tayjaybabee/jet-bridge/internal/registry"
)

// RenderStatus renders a registry snapshot as two tables.
func RenderStatus(snap registry.Snapshot) string {
	var b strings.Builder

	if len(snap.Active) == 0 && len(snap.Pending) == 0 {
		return Dim("no connections") + "\n"
	}

	if len(snap.Active) > 0 {
		t := NewTable("NAME", "DIALECT", "TABLES", "COLUMNS", "RELATIONS", "REFLECT", "FINGERPRINT").AlignRight(2, 3, 4, 5)
		for _, a := range snap.Active {
			t.AddRow(
				connectionName(a.Name, a.Project),
				a.Dialect,
				strconv.Itoa(a.Tables),
				strconv.Itoa(a.Columns),
				strconv.Itoa(a.Relationships),
				formatDuration(time.Duration(a.ReflectTime*float64(time.Second))),
				shortHash(a.Fingerprint),
			)
		}
		b.WriteString(t.String())
	}

	if len(snap.Pending) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		t := NewTable("PENDING", "PROGRESS", "STARTED").AlignRight(1)
		for _, p := range snap.Pending {
			t.AddRow(
				connectionName(p.Name, p.Project),
				fmt.Sprintf("%d/%d", p.TablesProcessed, p.TablesTotal),
				p.InitStart.Format(time.RFC3339),
			)
		}
		b.WriteString(t.String())
	}
	return b.String()
}

// RenderTables renders one row per table of a model.
func RenderTables(tables []*model.Table) string {
	t := NewTable("TABLE", "PRIMARY KEY", "COLUMNS", "RELATIONS", "FLAGS").AlignRight(2, 3)
	for _, tbl := range tables {
		var flags []string
		if tbl.PrimaryKeySynthetic {
			flags = append(flags, Warning("synthetic-pk"))
		}
		if tbl.View {
			flags = append(flags, "view")
		}
		if tbl.Hidden {
			flags = append(flags, Dim("hidden"))
		}
		t.AddRow(
			tbl.Model,
			tbl.PrimaryKeyField,
			strconv.Itoa(len(tbl.Fields)),
			strconv.Itoa(len(tbl.Relations)),
			strings.Join(flags, ","),
		)
	}
	return t.String()
}

func connectionName(name, project string) string {
	if project == "" {
		return name
	}
	return name + " (" + project + ")"
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
