package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

const logRetentionDays = 30

type logsAPI interface {
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchLogsClient is an io.Writer sink for the zap logger. Each Write is
// one log event in a stream owned by this process.
type CloudWatchLogsClient struct {
	api    logsAPI
	group  string
	stream string
	mu     sync.Mutex
}

// NewCloudWatchLogsClient prepares logGroup and opens a stream named
// <service>-<host>-<unix>, so replicas never share a stream.
func NewCloudWatchLogsClient(ctx context.Context, cfg aws.Config, logGroup, serviceName string) (*CloudWatchLogsClient, error) {
	return openLogStream(ctx, cloudwatchlogs.NewFromConfig(cfg), logGroup, serviceName)
}

func openLogStream(ctx context.Context, api logsAPI, logGroup, serviceName string) (*CloudWatchLogsClient, error) {
	if logGroup == "" {
		logGroup = "/ecommerce/courier-service"
	}
	host, _ := os.Hostname()
	c := &CloudWatchLogsClient{
		api:    api,
		group:  logGroup,
		stream: fmt.Sprintf("%s-%s-%d", serviceName, host, time.Now().Unix()),
	}

	_, err := api.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{LogGroupName: aws.String(c.group)})
	var exists *types.ResourceAlreadyExistsException
	switch {
	case err == nil:
		if _, err := api.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
			LogGroupName:    aws.String(c.group),
			RetentionInDays: aws.Int32(logRetentionDays),
		}); err != nil {
			return nil, fmt.Errorf("set retention on %s: %w", c.group, err)
		}
	case !errors.As(err, &exists):
		return nil, fmt.Errorf("create log group %s: %w", c.group, err)
	}

	if _, err := api.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(c.group),
		LogStreamName: aws.String(c.stream),
	}); err != nil {
		return nil, fmt.Errorf("create log stream %s: %w", c.stream, err)
	}
	return c, nil
}

// Write never fails the log call; delivery errors are reported on stderr.
func (c *CloudWatchLogsClient) Write(p []byte) (int, error) {
	msg := string(bytes.TrimRight(p, "\n"))
	if msg == "" {
		return len(p), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.api.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(c.group),
		LogStreamName: aws.String(c.stream),
		LogEvents: []types.InputLogEvent{{
			Message:   aws.String(msg),
			Timestamp: aws.Int64(time.Now().UnixMilli()),
		}},
	}); err != nil {
		fmt.Fprintf(os.Stderr, "cloudwatch logs: %v\n", err)
	}
	return len(p), nil
}
