package adapters

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"

	"awsinventory/internal/inventory"
)

// LambdaAdapter lists Lambda functions and their event source mappings
type LambdaAdapter struct {
	client func(region string) lambdaiface.LambdaAPI
}

func init() {
	register(Info{Service: "Lambda", Label: "Lambda Functions"}, func(p client.ConfigProvider) inventory.Adapter {
		return &LambdaAdapter{client: func(region string) lambdaiface.LambdaAPI {
			return lambda.New(p, regional(region))
		}}
	})
}

// Collect implements inventory.Adapter
func (a *LambdaAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("Lambda", region)
	svc := a.client(region)

	var functions []*lambda.FunctionConfiguration
	err := svc.ListFunctionsPagesWithContext(ctx, &lambda.ListFunctionsInput{}, func(page *lambda.ListFunctionsOutput, lastPage bool) bool {
		functions = append(functions, page.Functions...)
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	for _, fn := range functions {
		name := aws.StringValue(fn.FunctionName)

		var triggers []string
		err := svc.ListEventSourceMappingsPagesWithContext(ctx, &lambda.ListEventSourceMappingsInput{FunctionName: fn.FunctionName}, func(page *lambda.ListEventSourceMappingsOutput, lastPage bool) bool {
			for _, m := range page.EventSourceMappings {
				triggers = append(triggers, fmt.Sprintf("%s (%s)", aws.StringValue(m.EventSourceArn), aws.StringValue(m.State)))
			}
			return true
		})
		if err != nil {
			if c.skip(name, err) {
				continue
			}
			return c.finish(err)
		}

		concurrency := "Not configured"
		conc, err := svc.GetFunctionConcurrencyWithContext(ctx, &lambda.GetFunctionConcurrencyInput{FunctionName: fn.FunctionName})
		if err != nil {
			if c.skip(name, err) {
				continue
			}
			return c.finish(err)
		}
		if conc.ReservedConcurrentExecutions != nil {
			concurrency = fmt.Sprintf("%d", aws.Int64Value(conc.ReservedConcurrentExecutions))
		}

		architecture := "x86_64"
		if len(fn.Architectures) > 0 {
			architecture = aws.StringValue(fn.Architectures[0])
		}
		var layers []string
		for _, l := range fn.Layers {
			layers = append(layers, aws.StringValue(l.Arn))
		}

		details := map[string]interface{}{
			"ARN":                  aws.StringValue(fn.FunctionArn),
			"Runtime":              aws.StringValue(fn.Runtime),
			"Handler":              aws.StringValue(fn.Handler),
			"Role":                 aws.StringValue(fn.Role),
			"Memory (MB)":          aws.Int64Value(fn.MemorySize),
			"Timeout (s)":          aws.Int64Value(fn.Timeout),
			"Code Size":            fmt.Sprintf("%.2f MB", float64(aws.Int64Value(fn.CodeSize))/(1024*1024)),
			"Last Modified":        aws.StringValue(fn.LastModified),
			"Reserved Concurrency": concurrency,
			"Architecture":         architecture,
			"State":                aws.StringValue(fn.State),
			"Layers":               layers,
			"Triggers":             triggers,
		}
		if fn.Environment != nil && len(fn.Environment.Variables) > 0 {
			// Only variable names are reported; values may carry secrets.
			names := make([]string, 0, len(fn.Environment.Variables))
			for k := range fn.Environment.Variables {
				names = append(names, k)
			}
			sort.Strings(names)
			details["Environment Variables"] = names
		}
		if vpc := fn.VpcConfig; vpc != nil && aws.StringValue(vpc.VpcId) != "" {
			details["VPC ID"] = aws.StringValue(vpc.VpcId)
			details["Subnets"] = aws.StringValueSlice(vpc.SubnetIds)
			details["Security Groups"] = aws.StringValueSlice(vpc.SecurityGroupIds)
		}

		c.add(inventory.Resource{
			ID:          aws.StringValue(fn.FunctionArn),
			Name:        name,
			Description: aws.StringValue(fn.Description),
			Details:     details,
		})
	}
	return c.finish(nil)
}
