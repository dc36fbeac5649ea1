package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client/metadata"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestPacer_LimiterPerKey(t *testing.T) {
	p := NewPacer(Config{RequestsPerSecond: 10})

	l := p.limiter("ec2", "us-east-1")
	assert.Same(t, l, p.limiter("EC2", "us-east-1"))
	assert.Equal(t, rate.Limit(10), l.Limit())
	assert.Equal(t, 1, l.Burst())

	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "burst of one leaves no token for an immediate second request")

	// Other regions and services have their own limiters
	assert.NotSame(t, l, p.limiter("ec2", "us-west-2"))
	assert.True(t, p.limiter("ec2", "us-west-2").Allow())
	assert.True(t, p.limiter("s3", "us-east-1").Allow())
}

func TestPacer_ServiceLimits(t *testing.T) {
	p := NewPacer(DefaultConfig())

	assert.Equal(t, rate.Limit(4), p.limiter("route53", "us-east-1").Limit())
	assert.Equal(t, rate.Limit(1), p.limiter("Organizations", "us-east-1").Limit())
	assert.Equal(t, rate.Limit(5), p.limiter("sqs", "us-east-1").Limit())
}

func TestPacer_Disabled(t *testing.T) {
	p := NewPacer(Config{})
	assert.Equal(t, rate.Inf, p.limiter("ec2", "us-east-1").Limit())
	for i := 0; i < 10; i++ {
		assert.NoError(t, p.Wait(context.Background(), "ec2", "us-east-1"))
	}
}

func TestPacer_WaitHonorsContext(t *testing.T) {
	p := NewPacer(Config{RequestsPerSecond: 0.1})
	require.NoError(t, p.Wait(context.Background(), "ec2", "us-east-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.Error(t, p.Wait(ctx, "ec2", "us-east-1"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPacer_Handler(t *testing.T) {
	p := NewPacer(Config{RequestsPerSecond: 0.1})

	var handlers request.Handlers
	p.Install(&handlers)
	p.Install(&handlers)
	assert.Equal(t, 1, handlers.Sign.Len())

	newRequest := func(ctx context.Context) *request.Request {
		r := request.New(
			aws.Config{Region: aws.String("us-east-1")},
			metadata.ClientInfo{ServiceName: "ec2"},
			handlers,
			nil,
			&request.Operation{Name: "DescribeInstances"},
			nil, nil,
		)
		r.SetContext(ctx)
		return r
	}

	first := newRequest(context.Background())
	first.Handlers.Sign.Run(first)
	assert.NoError(t, first.Error)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	second := newRequest(ctx)
	second.Handlers.Sign.Run(second)

	require.Error(t, second.Error)
	aerr, ok := second.Error.(awserr.Error)
	require.True(t, ok)
	assert.Equal(t, request.CanceledErrorCode, aerr.Code())
}
