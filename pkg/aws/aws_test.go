package aws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	logtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- fakes ---

type fakeSNS struct{ in *sns.PublishInput }

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.in = in
	return &sns.PublishOutput{}, nil
}

type fakeSQS struct {
	mu       sync.Mutex
	messages []sqstypes.Message
	deleted  []string
}

func (f *fakeSQS) ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &sqs.ReceiveMessageOutput{Messages: f.messages}
	f.messages = nil
	return out, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, sdkaws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeSecrets struct {
	calls int
	value string
}

func (f *fakeSecrets) GetSecretValue(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	return &secretsmanager.GetSecretValueOutput{SecretString: sdkaws.String(f.value)}, nil
}

type fakeCloudWatch struct{ in *cloudwatch.PutMetricDataInput }

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.in = in
	return &cloudwatch.PutMetricDataOutput{}, nil
}

type fakeLogs struct {
	groupExists bool
	retention   bool
	events      []string
}

func (f *fakeLogs) CreateLogGroup(context.Context, *cloudwatchlogs.CreateLogGroupInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	if f.groupExists {
		return nil, &logtypes.ResourceAlreadyExistsException{}
	}
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *fakeLogs) PutRetentionPolicy(context.Context, *cloudwatchlogs.PutRetentionPolicyInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	f.retention = true
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (f *fakeLogs) CreateLogStream(context.Context, *cloudwatchlogs.CreateLogStreamInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (f *fakeLogs) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	for _, e := range in.LogEvents {
		f.events = append(f.events, sdkaws.ToString(e.Message))
	}
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

// --- tests ---

func TestSNSPublish_RoutingAttributes(t *testing.T) {
	api := &fakeSNS{}
	c := &SNSClient{api: api}

	err := c.Publish(context.Background(), "arn:aws:sns:ap-south-1:1:shipping.fifo", "shipment_booked",
		[]byte(`{"event_type":"shipment_booked","order_id":"ORD-1","courier":"delhivery"}`))
	require.NoError(t, err)

	assert.Equal(t, "shipment_booked", sdkaws.ToString(api.in.MessageAttributes["event_type"].StringValue))
	assert.Equal(t, "delhivery", sdkaws.ToString(api.in.MessageAttributes["courier"].StringValue))
	assert.Equal(t, "ORD-1", sdkaws.ToString(api.in.MessageGroupId))
}

func TestSNSPublish_StandardTopic(t *testing.T) {
	api := &fakeSNS{}
	c := &SNSClient{api: api}

	require.NoError(t, c.Publish(context.Background(), "arn:aws:sns:ap-south-1:1:shipping", "shipment_updated", []byte(`not json`)))
	assert.Nil(t, api.in.MessageGroupId)
	assert.NotContains(t, api.in.MessageAttributes, "courier")

	assert.ErrorIs(t, c.Publish(context.Background(), "", "shipment_updated", nil), errNoTopic)
}

func TestSQSPollOnce_AcksHandledOnly(t *testing.T) {
	api := &fakeSQS{messages: []sqstypes.Message{
		{MessageId: sdkaws.String("1"), ReceiptHandle: sdkaws.String("r1"), Body: sdkaws.String("ok")},
		{MessageId: sdkaws.String("2"), ReceiptHandle: sdkaws.String("r2"), Body: sdkaws.String("fail")},
	}}
	c := &SQSConsumer{api: api, queueURL: "q", log: zap.NewNop()}

	n, err := c.pollOnce(context.Background(), func(_ context.Context, body string) error {
		if body == "fail" {
			return errors.New("boom")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"r1"}, api.deleted)
}

func TestSQSStartPolling_StopsOnCancel(t *testing.T) {
	c := &SQSConsumer{api: &fakeSQS{}, queueURL: "q", log: zap.NewNop()}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.StartPolling(ctx, func(context.Context, string) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSecretsClient_CachesUntilForget(t *testing.T) {
	api := &fakeSecrets{value: `{"api_token":"t1"}`}
	s := newSecretsClient(api, time.Minute)

	for range 3 {
		v, err := s.GetSecret(context.Background(), "courier/delhivery")
		require.NoError(t, err)
		assert.Equal(t, `{"api_token":"t1"}`, v)
	}
	assert.Equal(t, 1, api.calls)

	s.Forget("courier/delhivery")
	_, err := s.GetSecret(context.Background(), "courier/delhivery")
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
}

func TestSecretsClient_Expires(t *testing.T) {
	api := &fakeSecrets{value: "v"}
	s := newSecretsClient(api, time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	_, _ = s.GetSecret(context.Background(), "x")
	now = now.Add(2 * time.Minute)
	_, _ = s.GetSecret(context.Background(), "x")

	assert.Equal(t, 2, api.calls)
}

func TestMetricsClient(t *testing.T) {
	t.Run("Disabled is a no-op", func(t *testing.T) {
		m := NewMetricsClient(sdkaws.Config{}, "", false)
		assert.False(t, m.IsEnabled())
		assert.NoError(t, m.RecordCount(context.Background(), MetricRateFallbacks, nil))

		var nilClient *MetricsClient
		assert.NoError(t, nilClient.RecordLatency(context.Background(), MetricCourierLatency, time.Second, nil))
	})

	t.Run("Courier dimensions are sorted", func(t *testing.T) {
		api := &fakeCloudWatch{}
		m := &MetricsClient{api: api, namespace: "CourierService"}

		require.NoError(t, m.RecordLatency(context.Background(), MetricCourierLatency, 120*time.Millisecond,
			CourierDimensions("bluedart", "rates")))

		datum := api.in.MetricData[0]
		assert.Equal(t, "CourierService", sdkaws.ToString(api.in.Namespace))
		assert.Equal(t, 120.0, sdkaws.ToFloat64(datum.Value))
		require.Len(t, datum.Dimensions, 2)
		assert.Equal(t, DimCourier, sdkaws.ToString(datum.Dimensions[0].Name))
		assert.Equal(t, DimOperation, sdkaws.ToString(datum.Dimensions[1].Name))
	})

	t.Run("Operation is optional", func(t *testing.T) {
		assert.Equal(t, map[string]string{DimCourier: "dtdc"}, CourierDimensions("dtdc", ""))
	})
}

func TestCloudWatchLogs(t *testing.T) {
	t.Run("New group gets retention", func(t *testing.T) {
		api := &fakeLogs{}
		c, err := openLogStream(context.Background(), api, "", "courier-service")
		require.NoError(t, err)
		assert.True(t, api.retention)
		assert.Equal(t, "/ecommerce/courier-service", c.group)
	})

	t.Run("Existing group is reused", func(t *testing.T) {
		api := &fakeLogs{groupExists: true}
		c, err := openLogStream(context.Background(), api, "/custom", "courier-service")
		require.NoError(t, err)
		assert.False(t, api.retention)

		n, err := c.Write([]byte("{\"msg\":\"booked\"}\n"))
		require.NoError(t, err)
		assert.Equal(t, 17, n)
		assert.Equal(t, []string{`{"msg":"booked"}`}, api.events)
	})
}
