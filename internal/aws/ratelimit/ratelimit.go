package ratelimit

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"golang.org/x/time/rate"

	"awsinventory/internal/logging"
)

const (
	// HandlerName identifies the pacing handler in an SDK handler list
	HandlerName = "awsinventory.ratelimit.Pacer"

	// Conservative default of 5 requests per second per service and region
	defaultRequestsPerSecond = 5
)

// Config holds request pacing limits
type Config struct {
	// RequestsPerSecond applies to every (service, region) pair not listed in
	// ServiceLimits. Zero or less disables pacing.
	RequestsPerSecond float64
	// ServiceLimits overrides RequestsPerSecond per SDK service name
	ServiceLimits map[string]float64
}

// DefaultConfig returns the default pacing limits
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: defaultRequestsPerSecond,
		ServiceLimits: map[string]float64{
			// Route 53 allows five requests per second per account
			"route53": 4,
			// Organizations is throttled aggressively on ListAccounts
			"organizations": 1,
		},
	}
}

// Pacer spaces out requests per (service, region) so that concurrent units
// hitting the same API do not trip its rate limit.
type Pacer struct {
	mu       sync.Mutex
	config   Config
	limiters map[string]*rate.Limiter
}

// NewPacer creates a Pacer
func NewPacer(cfg Config) *Pacer {
	return &Pacer{
		config:   cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limit returns the request rate allowed for a service
func (p *Pacer) limit(service string) rate.Limit {
	rps := p.config.RequestsPerSecond
	if limit, ok := p.config.ServiceLimits[strings.ToLower(service)]; ok {
		rps = limit
	}
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}

// limiter returns the limiter shared by every request to service in region
func (p *Pacer) limiter(service, region string) *rate.Limiter {
	key := strings.ToLower(service) + "/" + region

	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(p.limit(service), 1)
		p.limiters[key] = l
	}
	return l
}

// Wait blocks until the caller may issue a request to service in region
func (p *Pacer) Wait(ctx context.Context, service, region string) error {
	return p.limiter(service, region).Wait(ctx)
}

// Handler returns an SDK handler that paces every request attempt. It
// belongs at the front of the Sign list, which runs once per attempt.
func (p *Pacer) Handler() request.NamedHandler {
	return request.NamedHandler{
		Name: HandlerName,
		Fn: func(r *request.Request) {
			service := r.ClientInfo.ServiceName
			region := aws.StringValue(r.Config.Region)
			if err := p.Wait(r.Context(), service, region); err != nil {
				logging.Debug("Request cancelled while paced", map[string]interface{}{
					"service":   service,
					"region":    region,
					"operation": r.Operation.Name,
				})
				r.Error = awserr.New(request.CanceledErrorCode, "request context done while waiting for rate limit", err)
			}
		},
	}
}

// Install adds the pacing handler to a handler set, replacing an existing one
func (p *Pacer) Install(handlers *request.Handlers) {
	handlers.Sign.Remove(request.NamedHandler{Name: HandlerName})
	handlers.Sign.PushFrontNamed(p.Handler())
}
