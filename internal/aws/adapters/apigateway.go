package adapters

import (
	"context"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/apigateway"
	"github.com/aws/aws-sdk-go/service/apigateway/apigatewayiface"
	"github.com/aws/aws-sdk-go/service/apigatewayv2"
	"github.com/aws/aws-sdk-go/service/apigatewayv2/apigatewayv2iface"

	awslib "awsinventory/internal/aws"
	"awsinventory/internal/inventory"
)

// APIGatewayAdapter lists REST APIs together with HTTP and WebSocket APIs
type APIGatewayAdapter struct {
	rest func(region string) apigatewayiface.APIGatewayAPI
	v2   func(region string) apigatewayv2iface.ApiGatewayV2API
}

func init() {
	register(Info{Service: "APIGateway", Label: "API Gateway APIs"}, func(p client.ConfigProvider) inventory.Adapter {
		return &APIGatewayAdapter{
			rest: func(region string) apigatewayiface.APIGatewayAPI {
				return apigateway.New(p, regional(region))
			},
			v2: func(region string) apigatewayv2iface.ApiGatewayV2API {
				return apigatewayv2.New(p, regional(region))
			},
		}
	})
}

// Collect implements inventory.Adapter
func (a *APIGatewayAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("APIGateway", region)
	// Either API family may be unavailable in a region on its own.
	if err := a.collectREST(ctx, c, region); err != nil && !awslib.IsExpectedAbsence(err) {
		return c.finish(err)
	}
	if err := a.collectV2(ctx, c, region); err != nil {
		return c.finish(err)
	}
	return c.finish(nil)
}

func (a *APIGatewayAdapter) collectREST(ctx context.Context, c *collector, region string) error {
	svc := a.rest(region)

	var apis []*apigateway.RestApi
	err := svc.GetRestApisPagesWithContext(ctx, &apigateway.GetRestApisInput{}, func(page *apigateway.GetRestApisOutput, lastPage bool) bool {
		apis = append(apis, page.Items...)
		return true
	})
	if err != nil {
		return err
	}

	for _, api := range apis {
		id := aws.StringValue(api.Id)

		stagesOut, err := svc.GetStagesWithContext(ctx, &apigateway.GetStagesInput{RestApiId: api.Id})
		if err != nil {
			if c.skip(id, err) {
				continue
			}
			return err
		}
		var stages []string
		for _, s := range stagesOut.Item {
			stages = append(stages, aws.StringValue(s.StageName))
		}
		sort.Strings(stages)

		var paths []string
		err = svc.GetResourcesPagesWithContext(ctx, &apigateway.GetResourcesInput{RestApiId: api.Id}, func(page *apigateway.GetResourcesOutput, lastPage bool) bool {
			for _, r := range page.Items {
				methods := make([]string, 0, len(r.ResourceMethods))
				for m := range r.ResourceMethods {
					methods = append(methods, m)
				}
				sort.Strings(methods)
				path := aws.StringValue(r.Path)
				if len(methods) > 0 {
					path += " " + strings.Join(methods, ", ")
				}
				paths = append(paths, path)
			}
			return true
		})
		if err != nil {
			if c.skip(id, err) {
				continue
			}
			return err
		}
		sort.Strings(paths)

		var endpointTypes []string
		if api.EndpointConfiguration != nil {
			endpointTypes = aws.StringValueSlice(api.EndpointConfiguration.Types)
		}
		c.add(inventory.Resource{
			ID:          id,
			Name:        aws.StringValue(api.Name),
			Description: aws.StringValue(api.Description),
			CreatedAt:   timePtr(api.CreatedDate),
			Tags:        stringMap(api.Tags),
			Details: map[string]interface{}{
				"Protocol":       "REST",
				"Endpoint Types": endpointTypes,
				"API Key Source": aws.StringValue(api.ApiKeySource),
				"Version":        aws.StringValue(api.Version),
				"Stages":         stages,
				"Resources":      paths,
			},
		})
	}
	return nil
}

func (a *APIGatewayAdapter) collectV2(ctx context.Context, c *collector, region string) error {
	svc := a.v2(region)

	// apigatewayv2 has no paginators; follow NextToken by hand.
	var apis []*apigatewayv2.Api
	input := &apigatewayv2.GetApisInput{}
	for {
		out, err := svc.GetApisWithContext(ctx, input)
		if err != nil {
			return err
		}
		apis = append(apis, out.Items...)
		if aws.StringValue(out.NextToken) == "" {
			break
		}
		input.NextToken = out.NextToken
	}

	for _, api := range apis {
		id := aws.StringValue(api.ApiId)

		var stages []string
		stageInput := &apigatewayv2.GetStagesInput{ApiId: api.ApiId}
		for {
			out, err := svc.GetStagesWithContext(ctx, stageInput)
			if err != nil {
				if c.skip(id, err) {
					stages = nil
					break
				}
				return err
			}
			for _, s := range out.Items {
				stages = append(stages, aws.StringValue(s.StageName))
			}
			if aws.StringValue(out.NextToken) == "" {
				break
			}
			stageInput.NextToken = out.NextToken
		}
		sort.Strings(stages)

		var routes []string
		routeInput := &apigatewayv2.GetRoutesInput{ApiId: api.ApiId}
		for {
			out, err := svc.GetRoutesWithContext(ctx, routeInput)
			if err != nil {
				if c.skip(id, err) {
					routes = nil
					break
				}
				return err
			}
			for _, r := range out.Items {
				routes = append(routes, aws.StringValue(r.RouteKey))
			}
			if aws.StringValue(out.NextToken) == "" {
				break
			}
			routeInput.NextToken = out.NextToken
		}
		sort.Strings(routes)

		c.add(inventory.Resource{
			ID:          id,
			Name:        aws.StringValue(api.Name),
			Description: aws.StringValue(api.Description),
			CreatedAt:   timePtr(api.CreatedDate),
			Tags:        stringMap(api.Tags),
			Details: map[string]interface{}{
				"Protocol":     aws.StringValue(api.ProtocolType),
				"API Endpoint": aws.StringValue(api.ApiEndpoint),
				"Stages":       stages,
				"Routes":       routes,
			},
		})
	}
	return nil
}
