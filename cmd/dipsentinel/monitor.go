package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"DipSentinel/internal/config"
	"DipSentinel/internal/monitor"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the background notifier in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := monitor.WritePID(a.cfg.Monitor.PIDFile); err != nil {
				return err
			}
			defer func() {
				if err := monitor.RemovePID(a.cfg.Monitor.PIDFile); err != nil {
					a.log.Warn().Err(err).Msg("remove pid file")
				}
			}()

			ctx, cancel := signalContext()
			defer cancel()

			stop, _, err := a.startBackground(ctx)
			if err != nil {
				return err
			}
			a.log.Info().Int("pid", os.Getpid()).Msg("DipSentinel monitor is running. Press Ctrl+C to stop.")
			<-ctx.Done()
			a.log.Info().Msg("shutdown signal received, stopping...")
			stop()
			return nil
		},
	}
	cmd.AddCommand(newMonitorStatusCmd(), newMonitorStopCmd())
	return cmd
}

func pidFile() (string, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return "", err
	}
	return cfg.Monitor.PIDFile, nil
}

func newMonitorStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the background monitor is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := pidFile()
			if err != nil {
				return err
			}
			st, err := monitor.Status(path)
			if errors.Is(err, monitor.ErrNotRunning) {
				fmt.Println("monitor: stopped")
				return nil
			}
			if err != nil {
				return err
			}
			if !st.Running {
				fmt.Printf("monitor: stopped (stale pid %d)\n", st.PID)
				return nil
			}
			fmt.Printf("monitor: running (pid %d, %s)\n", st.PID, st.Command)
			if !st.Started.IsZero() {
				fmt.Printf("  started: %s (%s)\n", st.Started.Format(time.DateTime), humanize.Time(st.Started))
			}
			fmt.Printf("  memory:  %s\n", humanize.IBytes(st.RSS))
			fmt.Printf("  cpu:     %.1f%%\n", st.CPUPct)
			return nil
		},
	}
}

func newMonitorStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := pidFile()
			if err != nil {
				return err
			}
			if err := monitor.Stop(path); err != nil {
				return err
			}
			fmt.Println("monitor stopped")
			return nil
		},
	}
}
