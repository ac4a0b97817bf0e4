package email

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/digital-marketplace/internal/aws/awstest"
	"github.com/imrishuroy/digital-marketplace/internal/notify"
)

func emailData() notify.EmailData {
	return notify.EmailData{
		OrderID:                   "o1",
		EmailTo:                   "ada@example.com",
		OrderDate:                 "2026-10-01",
		ShippingAddressName:       "Ada <script>",
		ShippingAddressStreet:     "Unter den Linden 1",
		ShippingAddressCity:       "Berlin",
		ShippingAddressCountry:    "DE",
		ShippingAddressPostalCode: "10117",
	}
}

func TestRenderOrderReceived(t *testing.T) {
	msg, err := RenderOrderReceived(emailData())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, OrderReceivedSubject, msg.Subject)
	assert.Contains(t, msg.HTML, "10117 Berlin")
	assert.Contains(t, msg.HTML, "Ada &lt;script&gt;", "html body is escaped")
	assert.Contains(t, msg.Text, "Order o1 placed on 2026-10-01.")
	assert.NotContains(t, msg.Text, "Berlin,", "empty state is omitted")
}

func TestSender_Send(t *testing.T) {
	ses := &awstest.SES{}
	msg, err := RenderOrderReceived(emailData())
	require.NoError(t, err)

	id, err := NewSender(ses, "shop@example.com").Send(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "ses-1", id)

	require.Len(t, ses.Sent, 1)
	in := ses.Sent[0]
	assert.Equal(t, "shop@example.com", sdkaws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"ada@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, OrderReceivedSubject, sdkaws.ToString(in.Content.Simple.Subject.Data))
}

func TestSender_Error(t *testing.T) {
	ses := &awstest.SES{Err: errors.New("MessageRejected")}
	_, err := NewSender(ses, "shop@example.com").Send(context.Background(), &Message{To: "x@example.com"})
	require.Error(t, err)
}
