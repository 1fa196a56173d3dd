package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abytech-hub/notification-core/internal/config"
	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// EventPublisher announces notification lifecycle events to downstream consumers.
type EventPublisher interface {
	PublishNotificationCreated(ctx context.Context, n *domain.Notification) error
}

// PublishAPI is the subset of *sns.Client the publisher uses.
type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type publisher struct {
	client   PublishAPI
	topicARN string
}

// NewPublisher returns an SNS-backed publisher, or a no-op one when no topic is configured.
func NewPublisher(cfg *config.Config) (EventPublisher, error) {
	if cfg.SNSTopicARN == "" {
		return Nop{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) { o.BaseEndpoint = aws.String(cfg.AWSEndpointURL) })
	}
	return NewPublisherWithClient(sns.NewFromConfig(awsCfg, opts...), cfg.SNSTopicARN), nil
}

func NewPublisherWithClient(client PublishAPI, topicARN string) EventPublisher {
	return &publisher{client: client, topicARN: topicARN}
}

type createdEvent struct {
	Event        string               `json:"event"`
	Notification *domain.Notification `json:"notification"`
}

func (p *publisher) PublishNotificationCreated(ctx context.Context, n *domain.Notification) error {
	body, err := json.Marshal(createdEvent{Event: domain.EventNewNotification, Notification: n})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {DataType: aws.String("String"), StringValue: aws.String(domain.EventNewNotification)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", n.NotificationID, err)
	}
	return nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishNotificationCreated(context.Context, *domain.Notification) error { return nil }
