package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricsPublisher emits count metrics to CloudWatch under one namespace.
type MetricsPublisher struct {
	CloudWatch CloudWatchAPI
	Namespace  string
	Service    string
	nowFunc    func() time.Time
}

// NewMetricsPublisher returns a publisher that tags every datum with a
// Service dimension.
func NewMetricsPublisher(cw CloudWatchAPI, namespace, service string) *MetricsPublisher {
	return &MetricsPublisher{
		CloudWatch: cw,
		Namespace:  namespace,
		Service:    service,
		nowFunc:    time.Now,
	}
}

// Count records value occurrences of the named event.
func (m *MetricsPublisher) Count(ctx context.Context, name string, value float64) error {
	now := m.nowFunc()
	_, err := m.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: awsString(m.Namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: awsString(name),
				Unit:       cwtypes.StandardUnitCount,
				Value:      &value,
				Timestamp:  &now,
				Dimensions: []cwtypes.Dimension{
					{Name: awsString("Service"), Value: awsString(m.Service)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric data %s: %w", name, err)
	}
	return nil
}

// NopMetrics discards every datum. Used when metrics are disabled.
type NopMetrics struct{}

func (NopMetrics) Count(context.Context, string, float64) error { return nil }
