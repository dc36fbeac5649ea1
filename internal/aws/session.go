package aws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"

	"awsinventory/internal/aws/ratelimit"
	"awsinventory/internal/logging"
)

const (
	// DefaultHTTPTimeout bounds a single HTTP round trip
	DefaultHTTPTimeout = 25 * time.Second

	// HomeRegion is used for calls that need a region but are not regional
	HomeRegion = "us-east-1"
)

// SessionConfig describes the shared session used by every adapter
type SessionConfig struct {
	Profile string
	// Region is the session default; adapters override it per client
	Region string
	// Role is assumed in the profile's account when set
	Role        string
	MaxRetries  int
	HTTPTimeout time.Duration
	RateLimit   ratelimit.Config
}

// NewInventorySession creates the read-only session shared by all units of
// work. It carries the HTTP timeout, SDK retry budget and request pacing.
func NewInventorySession(cfg SessionConfig) (*session.Session, error) {
	if err := CheckProfile(cfg.Profile); err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = HomeRegion
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	awsCfg := aws.NewConfig().
		WithRegion(region).
		WithHTTPClient(&http.Client{Timeout: timeout}).
		WithMaxRetries(cfg.MaxRetries)

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsCfg,
		Profile:           cfg.Profile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	if cfg.Role != "" {
		identity, err := CallerIdentity(sess)
		if err != nil {
			return nil, err
		}
		sess, err = AssumeRole(sess, identity.AccountID, cfg.Role)
		if err != nil {
			return nil, err
		}
	}

	ratelimit.NewPacer(cfg.RateLimit).Install(&sess.Handlers)

	logging.Debug("Created AWS session", map[string]interface{}{
		"profile":     cfg.Profile,
		"region":      region,
		"role":        cfg.Role,
		"max_retries": cfg.MaxRetries,
		"timeout":     timeout.String(),
	})
	return sess, nil
}

// AssumeRole returns a session whose credentials come from assuming roleName
// in accountID with the credentials of sess.
func AssumeRole(sess *session.Session, accountID, roleName string) (*session.Session, error) {
	if roleName == "" {
		return sess, nil
	}

	logging.Debug("Assuming role", map[string]interface{}{
		"account_id": accountID,
		"role":       roleName,
	})

	roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
	creds := stscreds.NewCredentials(sess, roleARN)
	assumed := sess.Copy(aws.NewConfig().WithCredentials(creds))

	identity, err := CallerIdentity(assumed)
	if err != nil {
		return nil, fmt.Errorf("failed to assume role %s in account %s: %w", roleName, accountID, err)
	}
	logging.Debug("Assumed role", map[string]interface{}{
		"role_arn": identity.ARN,
	})
	return assumed, nil
}
