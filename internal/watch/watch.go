// Package watch runs pillbox as a long-lived daemon: periodic device status
// polls, re-derivation at midnight and an optional missed-dose sweep.
package watch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/dispense"
	"github.com/julianstephens/pillbox/internal/logger"
	"github.com/julianstephens/pillbox/internal/tracker"
	"github.com/julianstephens/pillbox/internal/utils"
)

// specParser accepts standard 5-field expressions and descriptors such as
// "@every 5m".
var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config controls which jobs run and when.
type Config struct {
	StatusSpec   string
	RolloverSpec string
	SweepSpec    string
	SweepMissed  bool
	MetricsAddr  string // empty disables the metrics endpoint
	LockDir      string
}

// DefaultConfig returns the schedule used when flags are left unset.
func DefaultConfig(lockDir string) Config {
	return Config{
		StatusSpec:   constants.DefaultStatusPollSpec,
		RolloverSpec: constants.DefaultRolloverSpec,
		SweepSpec:    constants.DefaultSweepSpec,
		LockDir:      lockDir,
	}
}

type Daemon struct {
	tracker     *tracker.Tracker
	coordinator *dispense.Coordinator
	cfg         Config
	log         *log.Logger
	lock        *lockfile
}

// New validates cfg and returns a daemon ready to Run.
func New(t *tracker.Tracker, c *dispense.Coordinator, cfg Config) (*Daemon, error) {
	specs := map[string]string{"status": cfg.StatusSpec, "rollover": cfg.RolloverSpec}
	if cfg.SweepMissed {
		specs["sweep"] = cfg.SweepSpec
	}
	for name, spec := range specs {
		if _, err := specParser.Parse(spec); err != nil {
			return nil, fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
		}
	}
	return &Daemon{
		tracker:     t,
		coordinator: c,
		cfg:         cfg,
		log:         logger.Named("watch"),
		lock:        newLockfile(cfg.LockDir),
	}, nil
}

// MetricsHandler serves the Prometheus registry.
func MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(constants.DefaultMetricsEndpoint, promhttp.Handler())
	return mux
}

// Run blocks until ctx is cancelled. Jobs run in the configured timezone and
// never overlap with themselves.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.lock.acquire(); err != nil {
		return err
	}
	defer func() {
		if err := d.lock.release(); err != nil {
			d.log.Warn("failed to remove watch lockfile", "error", err)
		}
	}()

	settings, err := d.tracker.Settings()
	if err != nil {
		return err
	}
	loc, err := utils.LoadLocation(settings.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", settings.Timezone, err)
	}

	cronLog := cronLogger{d.log}
	scheduler := cron.New(
		cron.WithParser(specParser),
		cron.WithLocation(loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	for _, job := range d.jobs() {
		run := job.run
		if _, err := scheduler.AddFunc(job.spec, func() { run(ctx) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		d.log.Info("job scheduled", "job", job.name, "spec", job.spec)
	}

	var srv *http.Server
	serveErr := make(chan error, 1)
	if d.cfg.MetricsAddr != "" {
		srv = &http.Server{Addr: d.cfg.MetricsAddr, Handler: MetricsHandler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
		d.log.Info("serving metrics", "addr", d.cfg.MetricsAddr, "path", constants.DefaultMetricsEndpoint)
	}

	d.rollover(ctx)
	d.pollStatus(ctx)
	scheduler.Start()
	d.log.Info("watch started", "timezone", loc.String(), "sweep", d.cfg.SweepMissed)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		d.log.Error("metrics server failed", "error", runErr)
	}

	<-scheduler.Stop().Done()
	d.coordinator.Wait()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			d.log.Warn("metrics server shutdown", "error", err)
		}
	}
	d.log.Info("watch stopped")
	return runErr
}

type job struct {
	name string
	spec string
	run  func(context.Context)
}

func (d *Daemon) jobs() []job {
	jobs := []job{
		{"status", d.cfg.StatusSpec, d.pollStatus},
		{"rollover", d.cfg.RolloverSpec, d.rollover},
	}
	if d.cfg.SweepMissed {
		jobs = append(jobs, job{"sweep", d.cfg.SweepSpec, d.sweep})
	}
	return jobs
}

func (d *Daemon) pollStatus(ctx context.Context) {
	snap, err := d.coordinator.CheckStatus(ctx)
	if err != nil {
		return
	}
	settings, err := d.tracker.Settings()
	if err == nil && snap.BatteryPercent <= settings.LowBatteryPercent {
		d.log.Warn("dispenser battery low", "battery", snap.BatteryPercent)
	}
}

func (d *Daemon) rollover(ctx context.Context) {
	doses, err := d.tracker.Refresh(ctx)
	if err != nil {
		d.log.Error("failed to derive today's doses", "error", err)
		return
	}
	d.log.Info("schedule refreshed", "doses", len(doses))
}

func (d *Daemon) sweep(ctx context.Context) {
	if _, err := d.coordinator.SweepOverdue(ctx, time.Now()); err != nil {
		d.log.Error("missed-dose sweep failed", "error", err)
	}
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
