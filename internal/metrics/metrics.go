// Package metrics publishes business counters to CloudWatch.
package metrics

import (
	"context"
	"log"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/digital-marketplace/internal/aws"
)

// Metric names.
const (
	CheckoutSessionCreated = "CheckoutSessionCreated"
	WebhookEvent           = "WebhookEvent"
)

// Recorder counts domain events. Implementations must not fail the caller.
type Recorder interface {
	Count(ctx context.Context, name string, dimensions map[string]string)
}

// CloudWatch sends each count as one PutMetricData call.
type CloudWatch struct {
	client    aws.CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewCloudWatch returns a Recorder publishing under namespace.
func NewCloudWatch(client aws.CloudWatchAPI, namespace string) *CloudWatch {
	return &CloudWatch{client: client, namespace: namespace, nowFunc: time.Now}
}

// Count implements Recorder. Errors are logged and dropped.
func (c *CloudWatch) Count(ctx context.Context, name string, dimensions map[string]string) {
	dims := make([]cwtypes.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		dims = append(dims, cwtypes.Dimension{Name: sdkaws.String(k), Value: sdkaws.String(v)})
	}
	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(c.namespace),
		MetricData: []cwtypes.MetricDatum{{
			MetricName: sdkaws.String(name),
			Dimensions: dims,
			Timestamp:  sdkaws.Time(c.nowFunc()),
			Unit:       cwtypes.StandardUnitCount,
			Value:      sdkaws.Float64(1),
		}},
	})
	if err != nil {
		log.Printf("[metrics] put metric %s failed: %v", name, err)
	}
}

// Nop discards every count.
type Nop struct{}

// Count implements Recorder.
func (Nop) Count(context.Context, string, map[string]string) {}
