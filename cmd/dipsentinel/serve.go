package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"DipSentinel/internal/dashboard"
	"DipSentinel/internal/monitor"
	"DipSentinel/internal/notifier"
	"DipSentinel/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	var (
		withMonitor bool
		port        int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			ctx, cancel := signalContext()
			defer cancel()

			var mon *monitor.Monitor
			if withMonitor {
				stop, m, err := a.startBackground(ctx)
				if err != nil {
					return err
				}
				defer stop()
				mon = m
			}

			srv := dashboard.New(dashboard.Config{
				Log:      a.log,
				Analyzer: a.analyzer,
				Store:    a.store,
				Monitor:  mon,
				Recorder: a.recorder,
				Metrics:  a.metrics,
				Port:     a.cfg.Server.Port,
			})

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&withMonitor, "with-monitor", false, "also run the background monitor, scheduler and chat commands")
	cmd.Flags().IntVar(&port, "port", 8080, "listen port (overrides config)")
	return cmd
}

// startBackground runs the monitor loop, the cron jobs and Telegram command
// polling until ctx is cancelled or stop is called. stop waits for the loop.
func (a *app) startBackground(parent context.Context) (func(), *monitor.Monitor, error) {
	ctx, cancel := context.WithCancel(parent)
	n, tn := a.notifier()
	mon, err := a.newMonitor(n)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	sched := scheduler.NewScheduler(ctx, mon, a.store, n, a.cfg.Backtest.DCA, a.log)
	if err := sched.RegisterAll(a.cfg.Schedule.RefreshCron, a.cfg.Schedule.DCACron); err != nil {
		cancel()
		return nil, nil, err
	}
	sched.Start()

	if tn != nil {
		cmds := &notifier.Commands{Store: a.store, Analyzer: a.analyzer}
		go tn.StartPolling(ctx, cmds.Handle)
		a.log.Info().Msg("telegram polling started")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = mon.Run(ctx)
	}()

	stop := func() {
		cancel()
		<-done
		sched.Stop()
	}
	return stop, mon, nil
}
