package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cascadelab/internal/mcp"
	"github.com/nvandessel/cascadelab/internal/pathutil"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Serve cascadelab tools over the Model Context Protocol on stdin/stdout.

Tools: cascade_run, cascade_timeseries, cascade_montecarlo, graph_metrics.
Saved experiments go to the configured result store, and every tool call
is appended to audit.jsonl next to it. Arrow files requested by tools are
written under ~/.cascadelab/exports. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			rs, err := openStore(cfg)
			if err != nil {
				return err
			}

			exportDir, err := pathutil.DefaultExportDir()
			if err != nil {
				rs.Close()
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:      "cascadelab",
				Version:   version,
				Settings:  cfg,
				Store:     rs,
				AuditDir:  filepath.Dir(rs.Path()),
				ExportDir: exportDir,
				Logger:    logger,
			})
			if err != nil {
				rs.Close()
				return fmt.Errorf("create MCP server: %w", err)
			}

			logger.Info("mcp server starting", "store", rs.Path())
			return server.Run(context.Background())
		},
	}
}
