package adapters

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/aws/aws-sdk-go/service/cloudfront/cloudfrontiface"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/aws/aws-sdk-go/service/route53/route53iface"

	awslib "awsinventory/internal/aws"
	"awsinventory/internal/inventory"
)

// CloudFrontAdapter lists CloudFront distributions. CloudFront is global, so
// the client always targets the home region whatever region is collected.
type CloudFrontAdapter struct {
	client func() cloudfrontiface.CloudFrontAPI
}

// Route53Adapter lists hosted zones and health checks. Route 53 is global, so
// the client always targets the home region whatever region is collected.
type Route53Adapter struct {
	client func() route53iface.Route53API
}

func init() {
	register(Info{Service: "CloudFront", Label: "CloudFront Distributions", Global: true}, func(p client.ConfigProvider) inventory.Adapter {
		return &CloudFrontAdapter{client: func() cloudfrontiface.CloudFrontAPI {
			return cloudfront.New(p, regional(awslib.HomeRegion))
		}}
	})
	register(Info{Service: "Route53", Label: "Route 53 Zones and Health Checks", Global: true}, func(p client.ConfigProvider) inventory.Adapter {
		return &Route53Adapter{client: func() route53iface.Route53API {
			return route53.New(p, regional(awslib.HomeRegion))
		}}
	})
}

// HomeRegion implements inventory.GlobalAdapter
func (a *CloudFrontAdapter) HomeRegion() string { return awslib.HomeRegion }

// HomeRegion implements inventory.GlobalAdapter
func (a *Route53Adapter) HomeRegion() string { return awslib.HomeRegion }

// Collect implements inventory.Adapter
func (a *CloudFrontAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("CloudFront", region)

	err := a.client().ListDistributionsPagesWithContext(ctx, &cloudfront.ListDistributionsInput{}, func(page *cloudfront.ListDistributionsOutput, lastPage bool) bool {
		if page.DistributionList == nil {
			return true
		}
		for _, d := range page.DistributionList.Items {
			var aliases, origins []string
			if d.Aliases != nil {
				aliases = aws.StringValueSlice(d.Aliases.Items)
			}
			if d.Origins != nil {
				for _, o := range d.Origins.Items {
					origins = append(origins, aws.StringValue(o.DomainName))
				}
			}
			details := map[string]interface{}{
				"ARN":          aws.StringValue(d.ARN),
				"Domain Name":  aws.StringValue(d.DomainName),
				"Status":       aws.StringValue(d.Status),
				"Enabled":      yesNo(d.Enabled),
				"Price Class":  aws.StringValue(d.PriceClass),
				"HTTP Version": aws.StringValue(d.HttpVersion),
				"Web ACL":      aws.StringValue(d.WebACLId),
				"Aliases":      aliases,
				"Origins":      origins,
			}
			if d.LastModifiedTime != nil {
				details["Last Modified"] = d.LastModifiedTime.UTC().Format("2006-01-02 15:04:05")
			}
			if d.ViewerCertificate != nil {
				details["SSL Support Method"] = aws.StringValue(d.ViewerCertificate.SSLSupportMethod)
			}
			name := aws.StringValue(d.DomainName)
			if len(aliases) > 0 {
				name = aliases[0]
			}
			c.add(inventory.Resource{
				ID:          aws.StringValue(d.Id),
				Name:        name,
				Description: aws.StringValue(d.Comment),
				Details:     details,
			})
		}
		return true
	})
	return c.finish(err)
}

// Collect implements inventory.Adapter
func (a *Route53Adapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("Route53", region)
	svc := a.client()

	err := svc.ListHostedZonesPagesWithContext(ctx, &route53.ListHostedZonesInput{}, func(page *route53.ListHostedZonesOutput, lastPage bool) bool {
		for _, zone := range page.HostedZones {
			private, comment := false, ""
			if zone.Config != nil {
				private = aws.BoolValue(zone.Config.PrivateZone)
				comment = aws.StringValue(zone.Config.Comment)
			}
			c.add(inventory.Resource{
				ID:          strings.TrimPrefix(aws.StringValue(zone.Id), "/hostedzone/"),
				Name:        strings.TrimSuffix(aws.StringValue(zone.Name), "."),
				Description: comment,
				Details: map[string]interface{}{
					"Resource Type": "Hosted Zone",
					"Private Zone":  yesNo(aws.Bool(private)),
					"Record Count":  aws.Int64Value(zone.ResourceRecordSetCount),
				},
			})
		}
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	err = svc.ListHealthChecksPagesWithContext(ctx, &route53.ListHealthChecksInput{}, func(page *route53.ListHealthChecksOutput, lastPage bool) bool {
		for _, hc := range page.HealthChecks {
			details := map[string]interface{}{
				"Resource Type": "Health Check",
			}
			name := aws.StringValue(hc.Id)
			if cfg := hc.HealthCheckConfig; cfg != nil {
				details["Check Type"] = aws.StringValue(cfg.Type)
				details["Target"] = aws.StringValue(cfg.FullyQualifiedDomainName)
				details["IP Address"] = aws.StringValue(cfg.IPAddress)
				details["Port"] = aws.Int64Value(cfg.Port)
				details["Resource Path"] = aws.StringValue(cfg.ResourcePath)
				if fqdn := aws.StringValue(cfg.FullyQualifiedDomainName); fqdn != "" {
					name = fqdn
				}
			}
			c.add(inventory.Resource{
				ID:      aws.StringValue(hc.Id),
				Name:    name,
				Details: details,
			})
		}
		return true
	})
	return c.finish(err)
}
