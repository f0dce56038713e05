package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names published under the service namespace.
const (
	MetricCourierRequests  = "CourierRequests"
	MetricCourierErrors    = "CourierErrors"
	MetricCourierLatency   = "CourierLatency"
	MetricRateFallbacks    = "RateFallbacks"
	MetricShipmentsBooked  = "ShipmentsBooked"
	MetricPartnerCacheMiss = "PartnerCacheMisses"
)

// Dimension keys. CloudWatch treats every distinct dimension set as its own
// series, so callers stick to these.
const (
	DimCourier   = "Courier"
	DimOperation = "Operation"
)

type metricsAPI interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsClient publishes courier call metrics to CloudWatch.
type MetricsClient struct {
	api       metricsAPI
	namespace string
}

// NewMetricsClient returns a client for namespace. When enabled is false the
// client is a no-op and never contacts CloudWatch.
func NewMetricsClient(cfg aws.Config, namespace string, enabled bool) *MetricsClient {
	if namespace == "" {
		namespace = "CourierService"
	}
	m := &MetricsClient{namespace: namespace}
	if enabled {
		m.api = cloudwatch.NewFromConfig(cfg)
	}
	return m
}

func (m *MetricsClient) IsEnabled() bool {
	return m != nil && m.api != nil
}

// CourierDimensions is the standard dimension set for a per-courier metric.
// op may be empty.
func CourierDimensions(courier, op string) map[string]string {
	dims := map[string]string{DimCourier: courier}
	if op != "" {
		dims[DimOperation] = op
	}
	return dims
}

func (m *MetricsClient) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	return m.put(ctx, newDatum(metricName, 1, types.StandardUnitCount, dimensions))
}

// RecordLatency records d in milliseconds.
func (m *MetricsClient) RecordLatency(ctx context.Context, metricName string, d time.Duration, dimensions map[string]string) error {
	return m.put(ctx, newDatum(metricName, float64(d.Milliseconds()), types.StandardUnitMilliseconds, dimensions))
}

func (m *MetricsClient) put(ctx context.Context, data ...types.MetricDatum) error {
	if !m.IsEnabled() {
		return nil
	}
	_, err := m.api.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", aws.ToString(data[0].MetricName), err)
	}
	return nil
}

func newDatum(name string, value float64, unit types.StandardUnit, dimensions map[string]string) types.MetricDatum {
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dims := make([]types.Dimension, 0, len(keys))
	for _, k := range keys {
		dims = append(dims, types.Dimension{Name: aws.String(k), Value: aws.String(dimensions[k])})
	}
	return types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: dims,
	}
}
