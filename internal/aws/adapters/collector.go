package adapters

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"

	awslib "awsinventory/internal/aws"
	"awsinventory/internal/inventory"
	"awsinventory/internal/logging"
)

// collector accumulates the resources of one adapter call, in page order,
// dropping repeated IDs.
type collector struct {
	service   string
	region    string
	seen      map[string]struct{}
	resources inventory.Resources
}

func newCollector(service, region string) *collector {
	return &collector{
		service:   service,
		region:    region,
		seen:      make(map[string]struct{}),
		resources: inventory.Resources{},
	}
}

func (c *collector) add(res inventory.Resource) {
	if res.ID == "" {
		logging.Debug("Skipping resource without ID", map[string]interface{}{
			"service": c.service,
			"region":  c.region,
			"name":    res.Name,
		})
		return
	}
	if _, dup := c.seen[res.ID]; dup {
		return
	}
	c.seen[res.ID] = struct{}{}
	res.Service = c.service
	res.Region = c.region
	c.resources = append(c.resources, res)
}

// finish turns the collected resources and the first error into the adapter
// result. Expected absence becomes an empty result.
func (c *collector) finish(err error) (inventory.Resources, error) {
	if err == nil {
		return c.resources, nil
	}
	if awslib.IsExpectedAbsence(err) {
		logging.Debug("Service not available in region", map[string]interface{}{
			"service": c.service,
			"region":  c.region,
			"reason":  err.Error(),
		})
		return inventory.Resources{}, nil
	}
	return nil, fmt.Errorf("%s in %s: %w", c.service, c.region, err)
}

// skip reports whether a per-resource lookup error can be ignored because
// the resource disappeared between listing and describing it.
func (c *collector) skip(id string, err error) bool {
	if !awslib.IsExpectedAbsence(err) {
		return false
	}
	logging.Debug("Resource vanished during collection", map[string]interface{}{
		"service": c.service,
		"region":  c.region,
		"id":      id,
	})
	return true
}

func regional(region string) *aws.Config {
	return aws.NewConfig().WithRegion(region)
}

func ec2Tags(tags []*ec2.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.StringValue(t.Key)] = aws.StringValue(t.Value)
	}
	return out
}

func stringMap(m map[string]*string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return aws.StringValueMap(m)
}

// keyValueTags converts the Key/Value tag structs most services share
func keyValueTags[T any](tags []T, kv func(T) (*string, *string)) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		k, v := kv(t)
		out[aws.StringValue(k)] = aws.StringValue(v)
	}
	return out
}

func timePtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}

// lastSegment returns the part of an ARN or URL after the final separator
func lastSegment(s string) string {
	if i := strings.LastIndexAny(s, "/:"); i >= 0 {
		return s[i+1:]
	}
	return s
}

func yesNo(b *bool) string {
	if aws.BoolValue(b) {
		return "Yes"
	}
	return "No"
}
