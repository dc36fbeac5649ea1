package inventory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"awsinventory/internal/logging"
	"awsinventory/internal/worker"

	"github.com/google/uuid"
)

const (
	// AllServices selects every registered adapter
	AllServices = "all"

	// DefaultConcurrency is used when Options.Concurrency is left at zero
	DefaultConcurrency = 8
)

var (
	// ErrNoServices is returned when no service is selected
	ErrNoServices = errors.New("at least one service must be selected")
	// ErrNoRegions is returned when no region is selected
	ErrNoRegions = errors.New("at least one region must be selected")
	// ErrInvalidConcurrency is returned for a concurrency bound below 1
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")
	// ErrNilRegistry is returned when the scheduler has no registry
	ErrNilRegistry = errors.New("adapter registry is required")
)

// UnknownServiceError is returned for a service that has no adapter
type UnknownServiceError struct {
	Service string
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("no adapter registered for service '%s'", e.Service)
}

// Options configures a collection run
type Options struct {
	// Services to collect; AllServices expands to every registered adapter
	Services []string
	Regions  []string
	// Concurrency bounds the number of units in flight. Zero means
	// DefaultConcurrency.
	Concurrency int
	// UnitTimeout bounds a single unit of work. Zero disables it.
	UnitTimeout time.Duration
	// Classify names the category of a unit error in the report
	Classify func(error) string
	Progress ProgressSink
	Now      func() time.Time
}

// Scheduler runs services x regions units of work on a bounded worker pool
type Scheduler struct {
	registry    *Registry
	services    []string
	regions     []string
	concurrency int
	unitTimeout time.Duration
	classify    func(error) string
	progress    ProgressSink
	now         func() time.Time
}

// NewScheduler validates opts against the registry. Nothing is invoked when
// validation fails.
func NewScheduler(registry *Registry, opts *Options) (*Scheduler, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if opts == nil {
		opts = &Options{}
	}

	services, err := resolveServices(registry, opts.Services)
	if err != nil {
		return nil, err
	}

	regions := dedupe(opts.Regions)
	if len(regions) == 0 {
		return nil, ErrNoRegions
	}

	concurrency := opts.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < 1 {
		return nil, ErrInvalidConcurrency
	}
	if opts.UnitTimeout < 0 {
		return nil, fmt.Errorf("unit timeout must not be negative: %s", opts.UnitTimeout)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		registry:    registry,
		services:    services,
		regions:     regions,
		concurrency: concurrency,
		unitTimeout: opts.UnitTimeout,
		classify:    opts.Classify,
		progress:    opts.Progress,
		now:         now,
	}, nil
}

func resolveServices(registry *Registry, requested []string) ([]string, error) {
	var names []string
	for _, s := range requested {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if strings.EqualFold(s, AllServices) {
			names = append(names, registry.Services()...)
			continue
		}
		name, ok := registry.Lookup(s)
		if !ok {
			return nil, &UnknownServiceError{Service: s}
		}
		names = append(names, name)
	}
	names = dedupe(names)
	if len(names) == 0 {
		return nil, ErrNoServices
	}
	return names, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Services returns the resolved service list
func (s *Scheduler) Services() []string {
	return append([]string(nil), s.services...)
}

// Regions returns the resolved region list
func (s *Scheduler) Regions() []string {
	return append([]string(nil), s.regions...)
}

// Units returns the full task set in submission order
func (s *Scheduler) Units() []UnitOfWork {
	units := make([]UnitOfWork, 0, len(s.services)*len(s.regions))
	for _, service := range s.services {
		for _, region := range s.regions {
			units = append(units, UnitOfWork{Service: service, Region: region})
		}
	}
	return units
}

// Run executes every unit exactly once and returns the aggregated report.
// Unit failures are recorded in the report; Run itself never fails.
func (s *Scheduler) Run(ctx context.Context) *Report {
	started := s.now()
	units := s.Units()
	agg := NewAggregator()

	logging.CollectStart(len(s.services), len(s.regions), s.concurrency)

	pool := worker.NewPool(s.concurrency, worker.WithTaskTimeout(s.unitTimeout))
	pool.Start()

	tasks := make([]worker.Task, 0, len(units))
	for _, u := range units {
		unit := u
		adapter := s.registry.adapters[unit.Service]
		collectIn, global := s.globalRegion(adapter)
		tasks = append(tasks, func(poolCtx context.Context) error {
			if global && unit.Region != collectIn {
				result := UnitResult{Unit: unit}
				s.notify(result, agg.Fold(result), 0)
				return nil
			}

			unitCtx, cancel := context.WithCancelCause(ctx)
			defer cancel(nil)
			stop := context.AfterFunc(poolCtx, func() {
				cancel(poolCtx.Err())
			})
			defer stop()

			logging.UnitStart(unit.Service, unit.Region)
			unitStart := time.Now()

			result := collect(unitCtx, adapter, unit)
			if result.Err != nil && s.classify != nil {
				result.Category = s.classify(result.Err)
			}
			s.notify(result, agg.Fold(result), time.Since(unitStart))
			return result.Err
		})
	}

	pool.ExecuteTasks(tasks)
	pool.Stop()

	metrics := pool.GetMetrics()
	logging.Debug("Worker pool finished", map[string]interface{}{
		"completed":    metrics.CompletedTasks,
		"failed":       metrics.FailedTasks,
		"peak_workers": metrics.PeakWorkers,
		"avg_ms":       metrics.AverageExecutionMs,
	})

	report := agg.Report()
	report.RunID = uuid.New().String()
	report.Services = s.Services()
	report.Regions = s.Regions()
	report.StartedAt = started
	report.CompletedAt = s.now()

	logging.CollectComplete(report.TotalResources(), len(report.Failures), report.CompletedAt.Sub(started))
	return report
}

// globalRegion returns the region a GlobalAdapter is collected in
func (s *Scheduler) globalRegion(adapter Adapter) (string, bool) {
	g, ok := adapter.(GlobalAdapter)
	if !ok {
		return "", false
	}
	if home := g.HomeRegion(); slices.Contains(s.regions, home) {
		return home, true
	}
	return s.regions[0], true
}

// collect invokes the adapter and converts errors, panics and deadline
// expiry into a failed result. An adapter that ignores its context is
// abandoned once the context is done.
func collect(ctx context.Context, adapter Adapter, unit UnitOfWork) UnitResult {
	done := make(chan UnitResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- UnitResult{Unit: unit, Err: fmt.Errorf("adapter panicked: %v", r)}
			}
		}()
		resources, err := adapter.Collect(ctx, unit.Region)
		if err != nil {
			done <- UnitResult{Unit: unit, Err: err}
			return
		}
		done <- UnitResult{Unit: unit, Resources: resources}
	}()

	select {
	case result := <-done:
		return withCause(ctx, result)
	case <-ctx.Done():
		select {
		case result := <-done:
			return withCause(ctx, result)
		default:
		}
		return UnitResult{Unit: unit, Err: fmt.Errorf("unit %s abandoned: %w", unit, context.Cause(ctx))}
	}
}

// withCause annotates a failure caused by context cancellation with the
// reason the context was cancelled, such as the unit deadline.
func withCause(ctx context.Context, result UnitResult) UnitResult {
	if result.Err == nil || ctx.Err() == nil {
		return result
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(result.Err, cause) {
		result.Err = fmt.Errorf("%w (%v)", result.Err, cause)
	}
	return result
}

// notify reports a folded unit; count is the number of resources the
// aggregator kept
func (s *Scheduler) notify(result UnitResult, count int, elapsed time.Duration) {
	status := result.Status()
	if status == StatusPopulated && count == 0 {
		status = StatusEmpty
	}
	event := UnitEvent{
		Unit:    result.Unit,
		Status:  status,
		Count:   count,
		Err:     result.Err,
		Elapsed: elapsed,
	}
	if result.Err != nil {
		logging.UnitFailed(result.Unit.Service, result.Unit.Region, result.Err)
	} else {
		logging.UnitComplete(result.Unit.Service, result.Unit.Region, event.Count, elapsed)
	}
	if s.progress != nil {
		s.progress.UnitCompleted(event)
	}
}
