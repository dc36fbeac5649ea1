package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	"awsinventory/internal/inventory"
)

// SNSAdapter lists SNS topics and their subscriptions
type SNSAdapter struct {
	client func(region string) snsiface.SNSAPI
}

// SQSAdapter lists SQS queues
type SQSAdapter struct {
	client func(region string) sqsiface.SQSAPI
}

func init() {
	register(Info{Service: "SNS", Label: "SNS Topics"}, func(p client.ConfigProvider) inventory.Adapter {
		return &SNSAdapter{client: func(region string) snsiface.SNSAPI {
			return sns.New(p, regional(region))
		}}
	})
	register(Info{Service: "SQS", Label: "SQS Queues"}, func(p client.ConfigProvider) inventory.Adapter {
		return &SQSAdapter{client: func(region string) sqsiface.SQSAPI {
			return sqs.New(p, regional(region))
		}}
	})
}

// Collect implements inventory.Adapter
func (a *SNSAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("SNS", region)
	svc := a.client(region)

	var arns []string
	err := svc.ListTopicsPagesWithContext(ctx, &sns.ListTopicsInput{}, func(page *sns.ListTopicsOutput, lastPage bool) bool {
		for _, t := range page.Topics {
			arns = append(arns, aws.StringValue(t.TopicArn))
		}
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	for _, arn := range arns {
		out, err := svc.GetTopicAttributesWithContext(ctx, &sns.GetTopicAttributesInput{TopicArn: aws.String(arn)})
		if err != nil {
			if c.skip(arn, err) {
				continue
			}
			return c.finish(err)
		}
		attrs := aws.StringValueMap(out.Attributes)

		var subscriptions []string
		err = svc.ListSubscriptionsByTopicPagesWithContext(ctx, &sns.ListSubscriptionsByTopicInput{TopicArn: aws.String(arn)}, func(page *sns.ListSubscriptionsByTopicOutput, lastPage bool) bool {
			for _, sub := range page.Subscriptions {
				status := "Confirmed"
				if aws.StringValue(sub.SubscriptionArn) == "PendingConfirmation" {
					status = "Pending"
				}
				subscriptions = append(subscriptions, fmt.Sprintf("%s:%s (%s)", aws.StringValue(sub.Protocol), aws.StringValue(sub.Endpoint), status))
			}
			return true
		})
		if err != nil {
			if c.skip(arn, err) {
				continue
			}
			return c.finish(err)
		}

		name := lastSegment(arn)
		details := map[string]interface{}{
			"Display Name":            attrs["DisplayName"],
			"Type":                    fifoType(name),
			"Owner":                   attrs["Owner"],
			"KMS Master Key ID":       valueOr(attrs["KmsMasterKeyId"], "N/A"),
			"Subscriptions Confirmed": atoi(attrs["SubscriptionsConfirmed"]),
			"Subscriptions Pending":   atoi(attrs["SubscriptionsPending"]),
			"Subscriptions Deleted":   atoi(attrs["SubscriptionsDeleted"]),
			"Subscriptions":           subscriptions,
		}
		if strings.HasSuffix(name, ".fifo") {
			details["Content-Based Deduplication"] = valueOr(attrs["ContentBasedDeduplication"], "false")
		}

		c.add(inventory.Resource{
			ID:      arn,
			Name:    name,
			Details: details,
		})
	}
	return c.finish(nil)
}

// Collect implements inventory.Adapter
func (a *SQSAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("SQS", region)
	svc := a.client(region)

	var urls []string
	err := svc.ListQueuesPagesWithContext(ctx, &sqs.ListQueuesInput{}, func(page *sqs.ListQueuesOutput, lastPage bool) bool {
		urls = append(urls, aws.StringValueSlice(page.QueueUrls)...)
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	for _, url := range urls {
		out, err := svc.GetQueueAttributesWithContext(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl:       aws.String(url),
			AttributeNames: aws.StringSlice([]string{sqs.QueueAttributeNameAll}),
		})
		if err != nil {
			if c.skip(url, err) {
				continue
			}
			return c.finish(err)
		}
		attrs := aws.StringValueMap(out.Attributes)

		tagOut, err := svc.ListQueueTagsWithContext(ctx, &sqs.ListQueueTagsInput{QueueUrl: aws.String(url)})
		if err != nil {
			if c.skip(url, err) {
				continue
			}
			return c.finish(err)
		}

		name := lastSegment(url)
		details := map[string]interface{}{
			"ARN":                       attrs[sqs.QueueAttributeNameQueueArn],
			"Type":                      fifoType(name),
			"Messages Available":        atoi(attrs[sqs.QueueAttributeNameApproximateNumberOfMessages]),
			"Messages in Flight":        atoi(attrs[sqs.QueueAttributeNameApproximateNumberOfMessagesNotVisible]),
			"Messages Delayed":          atoi(attrs[sqs.QueueAttributeNameApproximateNumberOfMessagesDelayed]),
			"Visibility Timeout":        atoi(attrs[sqs.QueueAttributeNameVisibilityTimeout]),
			"Maximum Message Size":      atoi(attrs[sqs.QueueAttributeNameMaximumMessageSize]),
			"Message Retention Period":  atoi(attrs[sqs.QueueAttributeNameMessageRetentionPeriod]),
			"Delay Seconds":             atoi(attrs[sqs.QueueAttributeNameDelaySeconds]),
			"Receive Message Wait Time": atoi(attrs[sqs.QueueAttributeNameReceiveMessageWaitTimeSeconds]),
			"KMS Master Key ID":         valueOr(attrs[sqs.QueueAttributeNameKmsMasterKeyId], "N/A"),
			"Dead Letter Queue":         deadLetterTarget(attrs[sqs.QueueAttributeNameRedrivePolicy]),
		}

		c.add(inventory.Resource{
			ID:        url,
			Name:      name,
			CreatedAt: epochSeconds(attrs[sqs.QueueAttributeNameCreatedTimestamp]),
			Tags:      stringMap(tagOut.Tags),
			Details:   details,
		})
	}
	return c.finish(nil)
}

func fifoType(name string) string {
	if strings.HasSuffix(name, ".fifo") {
		return "FIFO"
	}
	return "Standard"
}

// deadLetterTarget summarises a queue redrive policy
func deadLetterTarget(policy string) string {
	if policy == "" {
		return "Not Configured"
	}
	var redrive struct {
		DeadLetterTargetArn string      `json:"deadLetterTargetArn"`
		MaxReceiveCount     json.Number `json:"maxReceiveCount"`
	}
	if err := json.Unmarshal([]byte(policy), &redrive); err != nil {
		return policy
	}
	return fmt.Sprintf("%s (max receives %s)", redrive.DeadLetterTargetArn, redrive.MaxReceiveCount)
}

func epochSeconds(s string) *time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}

func atoi(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
