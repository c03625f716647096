package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"sorastudio/internal/domain"
)

// tickTimeout caps one reconciliation pass.
const tickTimeout = time.Minute

// TickListener receives the full job list after each reconciliation pass.
type TickListener func(jobs []*domain.Job)

// Reconciler polls the provider on a fixed interval, but only while at least
// one observer is registered.
type Reconciler struct {
	manager  *Manager
	interval time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	observers int
	scheduler *cron.Cron
	listeners map[int]TickListener
	nextID    int
}

// NewReconciler builds an idle Reconciler for manager.
func NewReconciler(manager *Manager, interval time.Duration, logger zerolog.Logger) *Reconciler {
	if interval < time.Second {
		interval = time.Second
	}
	return &Reconciler{
		manager:   manager,
		interval:  interval,
		logger:    logger.With().Str("component", "reconciler").Logger(),
		listeners: make(map[int]TickListener),
	}
}

// Observe registers an observer, starting the schedule for the first one.
// The returned release func is safe to call more than once.
func (r *Reconciler) Observe() (release func()) {
	r.mu.Lock()
	r.observers++
	if r.observers == 1 {
		r.start()
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.observers == 0 {
				return
			}
			r.observers--
			if r.observers == 0 {
				r.stop()
			}
		})
	}
}

// OnTick adds a listener and returns a func that removes it.
func (r *Reconciler) OnTick(fn TickListener) (remove func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Running reports whether the schedule is active.
func (r *Reconciler) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scheduler != nil
}

// Observers returns the current observer count.
func (r *Reconciler) Observers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.observers
}

// Tick runs one pass immediately and notifies listeners.
func (r *Reconciler) Tick(ctx context.Context) {
	changed, err := r.manager.ReconcileActive(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("reconcile pass failed")
		return
	}
	if len(changed) > 0 {
		r.logger.Debug().Int("changed", len(changed)).Msg("reconcile pass")
	}

	jobs, err := r.manager.List(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("list jobs after reconcile")
		return
	}

	r.mu.Lock()
	listeners := make([]TickListener, 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(jobs)
	}
}

// Shutdown stops the schedule regardless of observers and waits for a running
// pass to finish or ctx to expire.
func (r *Reconciler) Shutdown(ctx context.Context) {
	r.mu.Lock()
	scheduler := r.scheduler
	r.scheduler = nil
	r.observers = 0
	r.mu.Unlock()

	if scheduler == nil {
		return
	}
	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
	}
}

// start and stop are called with r.mu held.
func (r *Reconciler) start() {
	logger := cronLogger{logger: r.logger}
	scheduler := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	scheduler.Schedule(cron.Every(r.interval), cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
		defer cancel()
		r.Tick(ctx)
	}))
	scheduler.Start()
	r.scheduler = scheduler
	r.logger.Info().Dur("interval", r.interval).Msg("reconciler started")
}

// stop does not wait: an in-flight pass finishes on its own.
func (r *Reconciler) stop() {
	if r.scheduler == nil {
		return
	}
	r.scheduler.Stop()
	r.scheduler = nil
	r.logger.Info().Msg("reconciler stopped")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
