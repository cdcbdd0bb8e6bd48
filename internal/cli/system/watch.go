package system

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/watch"
)

type WatchCmd struct {
	MetricsAddr  string `help:"Serve Prometheus metrics on this address, e.g. :9464." env:"PILLBOX_METRICS_ADDR"`
	SweepMissed  bool   `help:"Periodically mark overdue doses as missed."`
	StatusSpec   string `help:"Cron schedule for device status polls." default:"${status_spec}"`
	RolloverSpec string `help:"Cron schedule for deriving the day's doses." default:"${rollover_spec}"`
	SweepSpec    string `help:"Cron schedule for the missed-dose sweep." default:"${sweep_spec}"`
}

// WatchVars supplies the schedule defaults referenced by WatchCmd tags.
func WatchVars() map[string]string {
	return map[string]string{
		"status_spec":   constants.DefaultStatusPollSpec,
		"rollover_spec": constants.DefaultRolloverSpec,
		"sweep_spec":    constants.DefaultSweepSpec,
	}
}

func (c *WatchCmd) config(lockDir string) watch.Config {
	cfg := watch.DefaultConfig(lockDir)
	cfg.MetricsAddr = c.MetricsAddr
	cfg.SweepMissed = c.SweepMissed
	if c.StatusSpec != "" {
		cfg.StatusSpec = c.StatusSpec
	}
	if c.RolloverSpec != "" {
		cfg.RolloverSpec = c.RolloverSpec
	}
	if c.SweepSpec != "" {
		cfg.SweepSpec = c.SweepSpec
	}
	return cfg
}

func (c *WatchCmd) Run(ctx *cli.Context) error {
	daemon, err := watch.New(ctx.Tracker, ctx.Coordinator, c.config(ctx.ConfigDir))
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Watching dispenser. Press Ctrl+C to stop.")
	if c.MetricsAddr != "" {
		fmt.Printf("Metrics: http://%s%s\n", c.MetricsAddr, constants.DefaultMetricsEndpoint)
	}
	return daemon.Run(runCtx)
}
