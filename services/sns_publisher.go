package services

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-backend/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// OrderEventPublisher pushes order lifecycle events to downstream
// consumers. Publish failures are best-effort for callers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, eventType string, event models.OrderEvent) error
}

// SNSPublisher publishes order events to an SNS topic.
type SNSPublisher struct {
	client   *sns.Client
	topicARN string
}

// NewSNSPublisher builds an SNS publisher on an already-loaded AWS config.
func NewSNSPublisher(cfg aws.Config, topicARN string) (*SNSPublisher, error) {
	if topicARN == "" {
		return nil, fmt.Errorf("order SNS topic ARN not set")
	}

	return &SNSPublisher{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
	}, nil
}

// PublishOrderEvent publishes one event with an event_type attribute for
// subscription filtering.
func (p *SNSPublisher) PublishOrderEvent(ctx context.Context, eventType string, event models.OrderEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(msgBytes)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(eventType),
			},
		},
	})
	return err
}
