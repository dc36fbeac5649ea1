package inventory

import (
	"encoding/json"
	"sort"
	"time"
)

// Report is the aggregated result of one collection run
type Report struct {
	RunID       string
	AccountID   string
	Profile     string
	Services    []string
	Regions     []string
	StartedAt   time.Time
	CompletedAt time.Time

	// Resources per service, in completion order
	Resources map[string]Resources
	Summary   map[UnitOfWork]UnitSummary
	Failures  []Failure
}

// ServiceNames returns every service present in the report, sorted
func (r *Report) ServiceNames() []string {
	seen := make(map[string]bool)
	for unit := range r.Summary {
		seen[unit.Service] = true
	}
	for service := range r.Resources {
		seen[service] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedUnits returns the summary keys ordered by service then region
func (r *Report) SortedUnits() []UnitOfWork {
	units := make([]UnitOfWork, 0, len(r.Summary))
	for unit := range r.Summary {
		units = append(units, unit)
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].Service != units[j].Service {
			return units[i].Service < units[j].Service
		}
		return units[i].Region < units[j].Region
	})
	return units
}

// TotalResources returns the number of resources across all services
func (r *Report) TotalResources() int {
	total := 0
	for _, resources := range r.Resources {
		total += len(resources)
	}
	return total
}

// ServiceTotal aggregates the summary of one service across regions
type ServiceTotal struct {
	Service       string
	Resources     int
	Regions       []string
	FailedRegions []string
}

// ServiceTotals returns per-service totals ordered by service name. Regions
// lists the regions that returned resources.
func (r *Report) ServiceTotals() []ServiceTotal {
	byService := make(map[string]*ServiceTotal)
	var order []string
	for _, unit := range r.SortedUnits() {
		total, ok := byService[unit.Service]
		if !ok {
			total = &ServiceTotal{Service: unit.Service}
			byService[unit.Service] = total
			order = append(order, unit.Service)
		}
		summary := r.Summary[unit]
		switch summary.Status {
		case StatusFailed:
			total.FailedRegions = append(total.FailedRegions, unit.Region)
		case StatusPopulated:
			total.Resources += summary.Count
			total.Regions = append(total.Regions, unit.Region)
		}
	}

	totals := make([]ServiceTotal, 0, len(order))
	for _, service := range order {
		totals = append(totals, *byService[service])
	}
	return totals
}

type summaryEntry struct {
	Service string `json:"service"`
	Region  string `json:"region"`
	UnitSummary
}

type reportJSON struct {
	RunID       string               `json:"run_id"`
	AccountID   string               `json:"account_id,omitempty"`
	Profile     string               `json:"profile,omitempty"`
	Services    []string             `json:"services"`
	Regions     []string             `json:"regions"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at"`
	Resources   map[string]Resources `json:"resources"`
	Summary     []summaryEntry       `json:"summary"`
	Failures    []Failure            `json:"failures"`
}

// MarshalJSON flattens the summary map into an ordered list since JSON object
// keys cannot be structs.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		RunID:       r.RunID,
		AccountID:   r.AccountID,
		Profile:     r.Profile,
		Services:    r.Services,
		Regions:     r.Regions,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Resources:   r.Resources,
		Failures:    r.Failures,
	}
	if out.Failures == nil {
		out.Failures = []Failure{}
	}
	for _, unit := range r.SortedUnits() {
		out.Summary = append(out.Summary, summaryEntry{
			Service:     unit.Service,
			Region:      unit.Region,
			UnitSummary: r.Summary[unit],
		})
	}
	return json.Marshal(out)
}
