package awstest

import (
	"context"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

// CloudWatch sums PutMetricData values per metric name.
type CloudWatch struct {
	mu     sync.Mutex
	Totals map[string]float64
}

func (c *CloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Totals == nil {
		c.Totals = map[string]float64{}
	}
	for _, d := range in.MetricData {
		c.Totals[sdkaws.ToString(d.MetricName)] += sdkaws.ToFloat64(d.Value)
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// Total returns the accumulated value for a metric.
func (c *CloudWatch) Total(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Totals[name]
}
