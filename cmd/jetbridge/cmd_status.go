package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
	"github.com/tayjaybabee/jet-bridge/internal/cli"
	"github.com/tayjaybabee/jet-bridge/internal/registry"
)

// statusCmd shows pending and active connections, either of a running
// server or of a one-off reflection of every configured connection.
func statusCmd() *cobra.Command {
	var (
		jsonOutput bool
		serverURL  string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pending and active connections",
		Example: `  jetbridge status --server http://localhost:8080
  jetbridge status --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				snap registry.Snapshot
				err  error
			)
			if serverURL != "" {
				snap, err = fetchStatus(cmd.Context(), serverURL)
			} else {
				snap, err = localStatus(cmd.Context())
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				return cli.WriteJSON(os.Stdout, snap)
			}
			fmt.Print(cli.RenderStatus(snap))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&serverURL, "server", "", "Read status from a running server")
	return cmd
}

// localStatus reflects every configured connection and reports the result.
// Connections that fail are reported as warnings.
func localStatus(ctx context.Context) (registry.Snapshot, error) {
	cfg, err := loadConfig()
	if err != nil {
		return registry.Snapshot{}, err
	}
	conns, err := cfg.selectConnections(nil)
	if err != nil {
		return registry.Snapshot{}, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return registry.Snapshot{}, err
	}
	defer client.Close()

	for _, cc := range conns {
		if _, err := client.Connect(ctx, cc.connectionConfig()); err != nil {
			fmt.Fprint(os.Stderr, cli.FormatWarning(fmt.Sprintf("%s: %v", cc.Name, err)))
		}
	}
	return client.Status(), nil
}

// fetchStatus reads /status from a running server.
func fetchStatus(ctx context.Context, base string) (registry.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/")+"/status", nil)
	if err != nil {
		return registry.Snapshot{}, alerr.Wrap(alerr.ErrConfigInvalid, err, "invalid server URL").With("server", base)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return registry.Snapshot{}, alerr.Wrap(alerr.EInternalError, err, "failed to reach server").With("server", base)
	}
	defer resp.Body.Close()

	var body struct {
		Status string            `json:"status"`
		Data   registry.Snapshot `json:"data"`
		Error  string            `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return registry.Snapshot{}, alerr.Wrap(alerr.EInternalError, err, "invalid status response").With("server", base)
	}
	if resp.StatusCode != http.StatusOK {
		return registry.Snapshot{}, alerr.Newf(alerr.EInternalError, "server returned %s", resp.Status).
			With("server", base).
			With("error", body.Error)
	}
	return body.Data, nil
}
