package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
)

// StatsReconciler rebuilds affiliate counters from the click and sale tables.
type StatsReconciler interface {
	Reconcile(ctx context.Context) ([]domain.AffiliateStatsDrift, error)
}

// Reconciler runs the stats reconciliation on a schedule. Runs never overlap.
type Reconciler struct {
	target   StatsReconciler
	interval time.Duration
	logger   *zap.Logger
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
	last    ReconcileReport
}

// ReconcileReport summarises the latest run.
type ReconcileReport struct {
	StartedAt time.Time                    `json:"started_at"`
	Duration  time.Duration                `json:"duration"`
	Drifts    []domain.AffiliateStatsDrift `json:"drifts"`
	Error     string                       `json:"error,omitempty"`
}

func NewReconciler(target StatsReconciler, interval time.Duration, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{
		target:   target,
		interval: interval,
		logger:   logger,
		cron:     cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(interval.Seconds()))
	_, _ = r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		if _, err := r.Run(ctx); err != nil {
			r.logger.Error("scheduled reconciliation failed", zap.Error(err))
		}
	})
	return r
}

func (r *Reconciler) Start() {
	if r == nil || r.cron == nil {
		return
	}
	r.cron.Start()
	r.logger.Info("stats reconciler started", zap.Duration("interval", r.interval))
}

func (r *Reconciler) Stop(ctx context.Context) {
	if r == nil || r.cron == nil {
		return
	}
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	r.logger.Info("stats reconciler stopped")
}

// ErrReconcileRunning is returned when a run is already in progress.
var ErrReconcileRunning = domain.NewError(domain.ErrCodeConflict, "reconciliation already running")

// Run executes one reconciliation pass.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ReconcileReport{}, ErrReconcileRunning
	}
	r.running = true
	r.mu.Unlock()

	started := time.Now()
	drifts, err := r.target.Reconcile(ctx)
	report := ReconcileReport{StartedAt: started, Duration: time.Since(started), Drifts: drifts}
	if err != nil {
		report.Error = err.Error()
	}

	r.mu.Lock()
	r.running = false
	r.last = report
	r.mu.Unlock()

	r.logger.Info("stats reconciliation finished",
		zap.Int("drifted", len(drifts)),
		zap.Duration("duration", report.Duration),
		zap.Error(err))
	return report, err
}

// Last returns the report of the most recent run.
func (r *Reconciler) Last() ReconcileReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
