package metrics

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/digital-marketplace/internal/aws/awstest"
)

func TestCloudWatch_Count(t *testing.T) {
	cw := &awstest.CloudWatch{}
	r := NewCloudWatch(cw, "Marketplace")

	r.Count(context.Background(), WebhookEvent, map[string]string{"Outcome": "paid"})

	require.Len(t, cw.Calls, 1)
	in := cw.Calls[0]
	assert.Equal(t, "Marketplace", sdkaws.ToString(in.Namespace))
	require.Len(t, in.MetricData, 1)
	d := in.MetricData[0]
	assert.Equal(t, WebhookEvent, sdkaws.ToString(d.MetricName))
	assert.Equal(t, cwtypes.StandardUnitCount, d.Unit)
	assert.Equal(t, 1.0, sdkaws.ToFloat64(d.Value))
	require.Len(t, d.Dimensions, 1)
	assert.Equal(t, "Outcome", sdkaws.ToString(d.Dimensions[0].Name))
	assert.Equal(t, "paid", sdkaws.ToString(d.Dimensions[0].Value))
}

func TestCloudWatch_ErrorIsSwallowed(t *testing.T) {
	cw := &awstest.CloudWatch{Err: errors.New("throttled")}
	assert.NotPanics(t, func() {
		NewCloudWatch(cw, "Marketplace").Count(context.Background(), CheckoutSessionCreated, nil)
	})
}
