package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tayjaybabee/jet-bridge/internal/cli"
	"github.com/tayjaybabee/jet-bridge/internal/model"
)

// reflectCmd reflects connections and prints their table descriptors.
func reflectCmd() *cobra.Command {
	var (
		format string
		only   []string
		views  bool
	)

	cmd := &cobra.Command{
		Use:   "reflect [name...]",
		Short: "Reflect connections and print their tables",
		Long: `Reflect connects to each named connection (all configured ones by default),
discovers its tables and prints the resulting descriptors.

Tables that cannot be introspected are skipped with a warning. Naming a table
with --only that does not exist fails the connection.`,
		Example: `  jetbridge reflect
  jetbridge reflect main --only customers,orders
  jetbridge reflect -d ./shop.db --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conns, err := cfg.selectConnections(args)
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			text := format == "" || format == "text"
			documents := make(map[string][]map[string]any, len(conns))

			for _, cc := range conns {
				jc := cc.connectionConfig()
				if len(only) > 0 {
					jc.Only = only
				}
				if views {
					jc.Views = true
				}

				var progress *cli.ReflectionProgress
				if text {
					progress = cli.NewReflectionProgress(cc.Name)
					jc.Progress = progress
				}

				r, err := client.Start(ctx, jc)
				if err != nil {
					return err
				}
				conn, err := r.Wait(ctx)
				if err != nil {
					return err
				}

				warnings := r.Warnings()
				for _, w := range warnings {
					fmt.Fprint(os.Stderr, cli.FormatWarning(fmt.Sprintf("skipped table %s: %v", w.Table, w.Err)))
				}

				tables := conn.Model.Tables()
				if text {
					progress.Done(len(tables), len(warnings))
					fmt.Println(cli.Header(cc.Name))
					fmt.Print(cli.RenderTables(tables))
					continue
				}

				docs, err := tableDocuments(tables)
				if err != nil {
					return err
				}
				documents[cc.Name] = docs
			}

			switch format {
			case "json":
				return cli.WriteJSON(os.Stdout, documents)
			case "yaml":
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				if err := enc.Encode(documents); err != nil {
					return err
				}
				return enc.Close()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json or yaml")
	cmd.Flags().StringSliceVar(&only, "only", nil, "Reflect only these tables")
	cmd.Flags().BoolVar(&views, "views", false, "Include views")
	return cmd
}

// tableDocuments converts descriptors to their key-value form.
func tableDocuments(tables []*model.Table) ([]map[string]any, error) {
	docs := make([]map[string]any, 0, len(tables))
	for _, t := range tables {
		doc, err := t.Document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
