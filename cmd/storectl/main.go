// Command storectl is a slim operator CLI over a running storage
// engine's state directory: report status, force an immediate snapshot,
// and force an immediate reclaimer pass, without needing a full database
// server listening on a port.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"github.com/mimirgraph/corestore/pkg/config"
	"github.com/mimirgraph/corestore/pkg/durability"
	"github.com/mimirgraph/corestore/pkg/storage"
)

func newLogger() logr.Logger {
	return stdr.New(nil)
}

func openEngine(cfg *config.Config, log logr.Logger) (*storage.Engine, error) {
	isolation := storage.Snapshot
	switch cfg.Storage.IsolationLevelDefault {
	case "read_committed":
		isolation = storage.ReadCommitted
	case "read_uncommitted":
		isolation = storage.ReadUncommitted
	}
	mode := storage.Transactional
	if cfg.Storage.StorageModeDefault == "analytical" {
		mode = storage.Analytical
	}

	engine := storage.NewEngine(storage.Config{
		PropertiesOnEdges:    cfg.Storage.PropertiesOnEdges,
		DefaultIsolation:     isolation,
		DefaultMode:          mode,
		MemoryHardLimitBytes: cfg.Memory.HardLimitBytes,
	}, nil, log, nil, nil)

	if cfg.Snapshot.RecoverOnStartup {
		rc := durability.NewRecoverer(cfg.Snapshot.Directory, log)
		if err := rc.Recover(context.Background(), engine); err != nil {
			return nil, fmt.Errorf("recover: %w", err)
		}
	}
	return engine, nil
}

func main() {
	log := newLogger()
	cfg := config.LoadFromEnv()

	root := &cobra.Command{
		Use:   "storectl",
		Short: "Operate a NornicDB storage engine's on-disk state",
	}

	root.AddCommand(statusCmd(cfg, log))
	root.AddCommand(snapshotCmd(cfg, log))
	root.AddCommand(gcCmd(cfg, log))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func statusCmd(cfg *config.Config, log logr.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report vertex/edge counts and memory usage after recovery",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			engine, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			fmt.Printf("vertices: %d\n", engine.VertexCount())
			fmt.Printf("edges:    %d\n", engine.EdgeCount())
			fmt.Printf("memory:   %s\n", engine.Memory().String())
			fmt.Printf("mode:     %s\n", engine.Mode())
			return nil
		},
	}
}

func snapshotCmd(cfg *config.Config, log logr.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Force an immediate snapshot to the configured snapshot directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			engine, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Snapshot.Directory, 0o755); err != nil {
				return err
			}
			name := fmt.Sprintf("%d.snapshot", time.Now().UnixNano())
			path := cfg.Snapshot.Directory + string(os.PathSeparator) + name
			writer := durability.NewSnapshotWriter(engine)
			if err := writer.WriteTo(path, engine.OldestActiveStart()); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
}

func gcCmd(cfg *config.Config, log logr.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Force one reclaimer pass over delta chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			engine, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			reclaimer := storage.NewReclaimer(engine, 0, log)
			n := reclaimer.ReclaimOnce()
			fmt.Printf("reclaimed %d deltas\n", n)
			return nil
		},
	}
}
