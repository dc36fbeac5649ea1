package aws

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
)

// absenceCodes are error codes meaning the service, feature or resource is
// not present in the region rather than that the call failed.
var absenceCodes = map[string]bool{
	"OptInRequired":                           true,
	"SubscriptionRequiredException":           true,
	"UnsupportedOperation":                    true,
	"UnsupportedOperationException":           true,
	"InvalidAction":                           true,
	"NotFound":                                true,
	"NotFoundException":                       true,
	"ResourceNotFoundException":               true,
	"NoSuchEntity":                            true,
	"NoSuchBucket":                            true,
	"NoSuchHostedZone":                        true,
	"NoSuchDistribution":                      true,
	"RepositoryNotFoundException":             true,
	"ClusterNotFoundException":                true,
	"FileSystemNotFound":                      true,
	"DBInstanceNotFound":                      true,
	"LoadBalancerNotFound":                    true,
	"TargetGroupNotFound":                     true,
	"AWS.SimpleQueueService.NonExistentQueue": true,
	"QueueDoesNotExist":                       true,
}

// IsExpectedAbsence reports whether err means "nothing to collect here":
// the service is not offered or not enabled in the region, or a listed
// resource vanished before it could be described. Permission, throttling
// and validation errors are not absence.
func IsExpectedAbsence(err error) bool {
	if err == nil {
		return false
	}

	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}

	code := aerr.Code()
	if absenceCodes[code] || strings.HasSuffix(code, ".NotFound") {
		return true
	}

	// Services missing from a region have no endpoint to resolve
	if code == request.ErrCodeRequestError {
		var dnsErr *net.DNSError
		if orig := aerr.OrigErr(); orig != nil && errors.As(orig, &dnsErr) {
			return dnsErr.IsNotFound
		}
		return strings.Contains(aerr.Message(), "no such host")
	}
	return false
}

// IsThrottling reports whether err is an API rate limit error
func IsThrottling(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case "Throttling", "ThrottlingException", "ThrottledException", "RequestLimitExceeded",
		"TooManyRequestsException", "RequestThrottled", "SlowDown", "PriorRequestNotComplete":
		return true
	}
	return false
}

// IsAccessDenied reports whether err is an authorization failure
func IsAccessDenied(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation", "AuthorizationError":
		return true
	}
	return false
}

// Failure categories reported for failed units
const (
	CategoryThrottled    = "throttled"
	CategoryAccessDenied = "access-denied"
	CategoryTimeout      = "timeout"
	CategoryError        = "error"
)

// ClassifyError names the failure category of a unit error
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case IsThrottling(err):
		return CategoryThrottled
	case IsAccessDenied(err):
		return CategoryAccessDenied
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	default:
		return CategoryError
	}
}
