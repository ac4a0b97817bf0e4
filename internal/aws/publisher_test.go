package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (r *recordingSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.inputs = append(r.inputs, in)
	id := "msg-1"
	return &sqs.SendMessageOutput{MessageId: &id}, nil
}

func TestPublishJSON(t *testing.T) {
	q := &recordingSQS{}
	p := NewPublisher(q, "https://sqs.local/queue")

	id, err := p.PublishJSON(context.Background(), map[string]string{"orderId": "o1"}, map[string]string{
		"order_id":       "o1",
		"correlation_id": "",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	require.Len(t, q.inputs, 1)

	in := q.inputs[0]
	assert.Equal(t, "https://sqs.local/queue", *in.QueueUrl)
	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(*in.MessageBody), &body))
	assert.Equal(t, "o1", body["orderId"])

	// empty attributes are dropped; SQS rejects empty string values
	assert.Len(t, in.MessageAttributes, 1)
	assert.Equal(t, "o1", *in.MessageAttributes["order_id"].StringValue)
}

func TestPublishJSON_SendError(t *testing.T) {
	q := &recordingSQS{err: errors.New("throttled")}
	p := NewPublisher(q, "q")

	_, err := p.PublishJSON(context.Background(), map[string]string{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
