package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSPublisher publishes shipment events.
type SNSPublisher interface {
	Publish(ctx context.Context, topicArn, eventType string, message []byte) error
}

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	api snsAPI
}

func NewSNSClient(cfg sdkaws.Config) *SNSClient {
	return &SNSClient{api: sns.NewFromConfig(cfg)}
}

var errNoTopic = errors.New("sns topic arn is empty")

// eventRouting holds the message fields subscribers route on.
type eventRouting struct {
	Courier string `json:"courier"`
	OrderID string `json:"order_id"`
}

// Publish sends message with event_type and courier attributes so queues can
// subscribe to a single courier's events. On FIFO topics events for one order
// share a message group and keep their order.
func (s *SNSClient) Publish(ctx context.Context, topicArn, eventType string, message []byte) error {
	if topicArn == "" {
		return errNoTopic
	}
	in := buildPublishInput(topicArn, eventType, message)
	if _, err := s.api.Publish(ctx, in); err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, topicArn, err)
	}
	return nil
}

func buildPublishInput(topicArn, eventType string, message []byte) *sns.PublishInput {
	attrs := map[string]types.MessageAttributeValue{
		"event_type": stringAttr(eventType),
	}
	var route eventRouting
	_ = json.Unmarshal(message, &route)
	if route.Courier != "" {
		attrs["courier"] = stringAttr(route.Courier)
	}

	in := &sns.PublishInput{
		TopicArn:          sdkaws.String(topicArn),
		Message:           sdkaws.String(string(message)),
		MessageAttributes: attrs,
	}
	if strings.HasSuffix(topicArn, ".fifo") {
		group := route.OrderID
		if group == "" {
			group = eventType
		}
		in.MessageGroupId = sdkaws.String(group)
	}
	return in
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: sdkaws.String("String"), StringValue: sdkaws.String(v)}
}
