package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/digital-marketplace/internal/aws/awstest"
	"github.com/imrishuroy/digital-marketplace/internal/email"
	"github.com/imrishuroy/digital-marketplace/internal/idempotency"
)

type fixture struct {
	p      *Processor
	dynamo *awstest.Dynamo
	ses    *awstest.SES
	idemp  *idempotency.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d := awstest.NewDynamo()
	d.CreateTable("idempotency", "idempotency_key", "")
	ses := &awstest.SES{}
	store := idempotency.NewStore(d, "idempotency", 48*time.Hour)
	return &fixture{
		p:      NewProcessor(store, email.NewSender(ses, "shop@example.com")),
		dynamo: d,
		ses:    ses,
		idemp:  store,
	}
}

func message(t *testing.T, orderID string) events.SQSEvent {
	t.Helper()
	body, err := json.Marshal(WorkerMessage{
		OrderID:                orderID,
		EmailTo:                "ada@example.com",
		OrderDate:              "2026-10-01",
		ShippingAddressName:    "Ada Lovelace",
		ShippingAddressCity:    "Berlin",
		ShippingAddressCountry: "DE",
	})
	require.NoError(t, err)
	kind := kindOrderReceived
	return events.SQSEvent{Records: []events.SQSMessage{{
		MessageId: "m-" + orderID,
		Body:      string(body),
		MessageAttributes: map[string]events.SQSMessageAttribute{
			"kind": {StringValue: &kind, DataType: "String"},
		},
	}}}
}

func TestWorkerProcess_SendsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.p.Handle(ctx, message(t, "o1")))
	require.NoError(t, f.p.Handle(ctx, message(t, "o1")), "redelivery is acknowledged")

	require.Len(t, f.ses.Sent, 1)
	sent := f.ses.Sent[0]
	assert.Equal(t, []string{"ada@example.com"}, sent.Destination.ToAddresses)
	assert.Equal(t, email.OrderReceivedSubject, *sent.Content.Simple.Subject.Data)

	rec, err := f.idemp.Get(ctx, idempotency.OrderReceivedKey("o1"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, idempotency.StatusDone, rec.Status)
	assert.Equal(t, "ses-1", rec.Response)
	assert.Equal(t, "o1", rec.Subject)
}

func TestWorkerProcess_SendFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ses.Err = errors.New("throttled")

	err := f.p.Handle(ctx, message(t, "o1"))
	require.Error(t, err)
	rec, err := f.idemp.Get(ctx, idempotency.OrderReceivedKey("o1"))
	require.NoError(t, err)
	assert.Equal(t, idempotency.StatusFailed, rec.Status)
	assert.Contains(t, rec.Note, "throttled")

	f.ses.Err = nil
	require.NoError(t, f.p.Handle(ctx, message(t, "o1")))
	assert.Len(t, f.ses.Sent, 1)

	rec, err = f.idemp.Get(ctx, idempotency.OrderReceivedKey("o1"))
	require.NoError(t, err)
	assert.Equal(t, idempotency.StatusDone, rec.Status)
	assert.Equal(t, 2, rec.Attempts)
}

func TestWorkerProcess_InProgressIsNotSentTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.idemp.CreateIfNotExists(ctx, idempotency.OrderReceivedKey("o1"), "o1")
	require.NoError(t, err)
	require.True(t, created)

	err = f.p.Handle(ctx, message(t, "o1"))
	assert.True(t, errors.Is(err, ErrInProgress), "got %v", err)
	assert.Empty(t, f.ses.Sent)
}

func TestWorkerProcess_InvalidMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.p.Handle(ctx, events.SQSEvent{Records: []events.SQSMessage{{Body: "{"}}})
	assert.Error(t, err)

	err = f.p.Handle(ctx, events.SQSEvent{Records: []events.SQSMessage{{Body: `{"orderId":"o1","emailTo":"nope"}`}}})
	assert.Error(t, err)
	assert.Empty(t, f.ses.Sent)
	assert.Empty(t, f.dynamo.Items("idempotency"))
}

func TestWorkerProcess_SkipsOtherKinds(t *testing.T) {
	f := newFixture(t)
	ev := message(t, "o1")
	other := "refund-issued"
	ev.Records[0].MessageAttributes["kind"] = events.SQSMessageAttribute{StringValue: &other, DataType: "String"}

	require.NoError(t, f.p.Handle(context.Background(), ev))
	assert.Empty(t, f.ses.Sent)
}

func TestWorkerProcess_StoreErrorIsReturned(t *testing.T) {
	f := newFixture(t)
	f.dynamo.Errs["PutItem"] = errors.New("dynamodb unavailable")

	err := f.p.Handle(context.Background(), message(t, "o1"))
	require.Error(t, err)
	assert.Empty(t, f.ses.Sent)
	assert.Nil(t, f.dynamo.Item("idempotency", map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: idempotency.OrderReceivedKey("o1")},
	}))
}
