package inventory

import (
	"sort"
	"time"
)

// Resource is one normalized inventory row. Service-specific fields that do
// not map onto the common columns go into Details.
type Resource struct {
	Region      string                 `json:"region"`
	Service     string                 `json:"service"`
	Name        string                 `json:"name,omitempty"`
	ID          string                 `json:"id"`
	Description string                 `json:"description,omitempty"`
	CreatedAt   *time.Time             `json:"created_at,omitempty"`
	Tags        map[string]string      `json:"tags,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Resources is a list of Resource
type Resources []Resource

// ResourceKey identifies a resource within a run
type ResourceKey struct {
	Service string
	Region  string
	ID      string
}

// Key returns the (service, region, id) triple of the resource
func (r Resource) Key() ResourceKey {
	return ResourceKey{Service: r.Service, Region: r.Region, ID: r.ID}
}

// DetailKeys returns the sorted keys of Details
func (r Resource) DetailKeys() []string {
	keys := make([]string, 0, len(r.Details))
	for k := range r.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnitOfWork is one (service, region) pair scheduled for collection
type UnitOfWork struct {
	Service string `json:"service"`
	Region  string `json:"region"`
}

func (u UnitOfWork) String() string {
	return u.Service + "/" + u.Region
}

// Status is the outcome of a unit of work
type Status int

const (
	// StatusPopulated means the adapter returned at least one resource
	StatusPopulated Status = iota
	// StatusEmpty means the adapter succeeded with no resources
	StatusEmpty
	// StatusFailed means the adapter returned an error, panicked or timed out
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPopulated:
		return "populated"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON output
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnitResult is the outcome of running the adapter for one unit of work
type UnitResult struct {
	Unit      UnitOfWork
	Resources Resources
	Err       error
	// Category classifies Err for reporting, such as "throttled"
	Category string
}

// Status classifies the result
func (r UnitResult) Status() Status {
	switch {
	case r.Err != nil:
		return StatusFailed
	case len(r.Resources) == 0:
		return StatusEmpty
	default:
		return StatusPopulated
	}
}

// Failure returns the failure record for a failed result
func (r UnitResult) Failure() Failure {
	f := Failure{Service: r.Unit.Service, Region: r.Unit.Region, Category: r.Category}
	if r.Err != nil {
		f.Error = r.Err.Error()
	}
	return f
}

// Failure records a unit of work that did not complete
type Failure struct {
	Service  string `json:"service"`
	Region   string `json:"region"`
	Category string `json:"category,omitempty"`
	Error    string `json:"error"`
}

// UnitSummary is the summary entry of one (service, region) pair. A failed
// pair carries StatusFailed and a zero count.
type UnitSummary struct {
	Count  int    `json:"count"`
	Status Status `json:"status"`
}
