package app

import (
	"fmt"
	"path/filepath"

	"github.com/blackwell-systems/debtrust/internal/output"
	"github.com/blackwell-systems/debtrust/internal/verify"
	"github.com/blackwell-systems/debtrust/internal/watcher"
	"github.com/spf13/cobra"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchStop        bool
	watchStatus      bool

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Continuously re-verify files as they change",
		Long: `Monitor the configured watch roots and re-verify any file that is
written or created, after a short settle window. A file that drops
into the mismatch verdict is logged immediately, turning the trust
database into a near-real-time integrity monitor.

Changed verdicts accumulate in memory and are persisted on shutdown.
Watch roots come from the config file (watch_roots).`,
		Example: `  # Watch in the foreground
  debtrust watch

  # Run as a background daemon
  debtrust watch --daemon

  # Check / stop the daemon
  debtrust watch --status
  debtrust watch --stop`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as a background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal: run the daemon event loop")
	watchCmd.Flags().MarkHidden("daemon-child")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop a running daemon")
	watchCmd.Flags().BoolVar(&watchStatus, "status", false, "report whether the daemon is running")

	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	rc, err := openRun()
	if err != nil {
		return err
	}
	defer rc.close()

	pidFile := filepath.Join(rc.cfg.StateDir, "watch.pid")
	logFile := filepath.Join(rc.cfg.StateDir, "watch.log")

	switch {
	case watchStatus:
		running, err := watcher.IsDaemonRunning(pidFile)
		if err != nil {
			return err
		}
		if running {
			fmt.Println("watch daemon is running")
		} else {
			fmt.Println("watch daemon is not running")
		}
		return nil
	case watchStop:
		if err := watcher.StopDaemon(pidFile); err != nil {
			return err
		}
		fmt.Println("watch daemon stopped")
		return nil
	case watchDaemon:
		if err := watcher.StartDaemon(pidFile, logFile); err != nil {
			return err
		}
		fmt.Printf("watch daemon started (log: %s)\n", logFile)
		return nil
	}

	metadata, err := rc.loadMetadata()
	if err != nil {
		rc.log.Warn("continuing without dpkg metadata", "error", err)
	}

	stream := output.NewStream()
	stream.SetQuiet(true)
	runner := verify.NewRunner(rc.db, metadata, nil, nil, stream, rc.log)
	runner.CheckpointEvery = rc.cfg.CheckpointInterval
	runner.CheckpointPath = rc.cfg.CheckpointPath()

	w, err := watcher.New(rc.cfg.WatchRoots, func(path string) {
		runner.CheckPath(path, verify.Options{})
	}, rc.log)
	if err != nil {
		return err
	}

	rc.log.Info("watching", "roots", fmt.Sprintf("%v", rc.cfg.WatchRoots))
	if err := w.RunDaemon(pidFile); err != nil {
		return err
	}

	sum := runner.Summary()
	printSummary(sum)
	if sum.Changed > 0 {
		if err := rc.commit(); err != nil {
			return err
		}
	}
	rc.recordHistory("watch", sum, sum.Changed > 0)
	return nil
}
