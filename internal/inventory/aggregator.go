package inventory

import "sync"

// Aggregator folds unit results into a Report. Fold is safe for concurrent
// use; each call is applied atomically.
type Aggregator struct {
	mu        sync.Mutex
	resources map[string]Resources
	seen      map[ResourceKey]struct{}
	summary   map[UnitOfWork]UnitSummary
	failures  []Failure
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		resources: make(map[string]Resources),
		seen:      make(map[ResourceKey]struct{}),
		summary:   make(map[UnitOfWork]UnitSummary),
	}
}

// Fold merges one unit result. Resources are filed under the unit's service
// and stamped with the unit's service and region. A resource whose
// (service, region, id) is already present is skipped and not counted.
// Fold returns the number of resources appended.
func (a *Aggregator) Fold(result UnitResult) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	unit := result.Unit
	if result.Err != nil {
		a.failures = append(a.failures, result.Failure())
		a.summary[unit] = UnitSummary{Count: 0, Status: StatusFailed}
		return 0
	}

	entry := a.summary[unit]
	appended := 0
	for _, res := range result.Resources {
		res.Service = unit.Service
		res.Region = unit.Region
		key := res.Key()
		if _, dup := a.seen[key]; dup {
			continue
		}
		a.seen[key] = struct{}{}
		a.resources[unit.Service] = append(a.resources[unit.Service], res)
		entry.Count++
		appended++
	}
	if entry.Count > 0 {
		entry.Status = StatusPopulated
	} else {
		entry.Status = StatusEmpty
	}
	a.summary[unit] = entry
	return appended
}

// Report returns the aggregated report. Run metadata is left for the caller.
func (a *Aggregator) Report() *Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	resources := make(map[string]Resources, len(a.resources))
	for service, list := range a.resources {
		resources[service] = append(Resources(nil), list...)
	}
	summary := make(map[UnitOfWork]UnitSummary, len(a.summary))
	for unit, entry := range a.summary {
		summary[unit] = entry
	}
	return &Report{
		Resources: resources,
		Summary:   summary,
		Failures:  append([]Failure(nil), a.failures...),
	}
}
