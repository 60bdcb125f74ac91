package aws

import (
	"context"
	"testing"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws/awstest"
)

func TestMetricsPublisher_Count(t *testing.T) {
	cw := &awstest.CloudWatch{}
	m := NewMetricsPublisher(cw, "Storefront", "gateway")

	ctx := context.Background()
	if err := m.Count(ctx, "CheckoutPaid", 1); err != nil {
		t.Fatalf("count: %v", err)
	}
	if err := m.Count(ctx, "CheckoutPaid", 2); err != nil {
		t.Fatalf("count: %v", err)
	}

	if got := cw.Total("CheckoutPaid"); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
}
