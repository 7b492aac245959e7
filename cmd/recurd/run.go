package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"recurd/internal/app"
)

func cmdRun(args []string, _, errOut io.Writer) error {
	fs := newFlagSet("run", errOut)
	cfgPath := fs.StringP("config", "c", "./recurd.yaml", "path to config (json or yaml)")
	stopTimeout := fs.Duration("stop-timeout", 10*time.Second, "upper bound for graceful shutdown")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	a, err := app.NewApp(*cfgPath)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if err := a.Start(context.Background()); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	// No-op outside systemd (NOTIFY_SOCKET unset).
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	reason := app.StopUnknown
	select {
	case s := <-sigs:
		reason = app.StopSIGTERM
		if s == os.Interrupt {
			reason = app.StopSIGINT
		}
	case <-a.Done():
		reason = app.StopFatalError
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	fatal := a.Err()
	ctx, cancel := context.WithTimeout(context.Background(), *stopTimeout)
	defer cancel()
	if err := a.Stop(ctx, reason); err != nil {
		fmt.Fprintf(errOut, "recurd: stop: %v\n", err)
	}
	return fatal
}
