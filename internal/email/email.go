// Package email renders and sends the order-received email through SES.
package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/imrishuroy/digital-marketplace/internal/aws"
	"github.com/imrishuroy/digital-marketplace/internal/notify"
)

// OrderReceivedSubject is the subject of the order-received email.
const OrderReceivedSubject = "Thanks for your order!"

const htmlBody = `<!DOCTYPE html>
<html>
<body>
<h1>Thanks for your order!</h1>
<p>Order <strong>{{.OrderID}}</strong> placed on {{.OrderDate}}.</p>
<p>Your downloads are ready on the order page.</p>
<h2>Shipping address</h2>
<p>{{.ShippingAddressName}}<br>
{{.ShippingAddressStreet}}<br>
{{.ShippingAddressPostalCode}} {{.ShippingAddressCity}}{{if .ShippingAddressState}}, {{.ShippingAddressState}}{{end}}<br>
{{.ShippingAddressCountry}}</p>
</body>
</html>
`

const textBody = `Thanks for your order!

Order {{.OrderID}} placed on {{.OrderDate}}.
Your downloads are ready on the order page.

Shipping address:
{{.ShippingAddressName}}
{{.ShippingAddressStreet}}
{{.ShippingAddressPostalCode}} {{.ShippingAddressCity}}{{if .ShippingAddressState}}, {{.ShippingAddressState}}{{end}}
{{.ShippingAddressCountry}}
`

var (
	htmlTmpl = htmltemplate.Must(htmltemplate.New("order-received.html").Parse(htmlBody))
	textTmpl = texttemplate.Must(texttemplate.New("order-received.txt").Parse(textBody))
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// RenderOrderReceived renders the order-received email for data.
func RenderOrderReceived(data notify.EmailData) (*Message, error) {
	var h, t bytes.Buffer
	if err := htmlTmpl.Execute(&h, data); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}
	if err := textTmpl.Execute(&t, data); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}
	return &Message{
		To:      data.EmailTo,
		Subject: OrderReceivedSubject,
		HTML:    h.String(),
		Text:    t.String(),
	}, nil
}

// Sender sends rendered messages through SES.
type Sender struct {
	client aws.SESAPI
	from   string
}

// NewSender returns a Sender using from as the verified sender address.
func NewSender(client aws.SESAPI, from string) *Sender {
	return &Sender{client: client, from: from}
}

// Send delivers msg and returns the SES message id.
func (s *Sender) Send(ctx context.Context, msg *Message) (string, error) {
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: sdkaws.String(s.from),
		Destination:      &sestypes.Destination{ToAddresses: []string{msg.To}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: sdkaws.String(msg.Subject), Charset: sdkaws.String("UTF-8")},
				Body: &sestypes.Body{
					Html: &sestypes.Content{Data: sdkaws.String(msg.HTML), Charset: sdkaws.String("UTF-8")},
					Text: &sestypes.Content{Data: sdkaws.String(msg.Text), Charset: sdkaws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send email: %w", err)
	}
	return sdkaws.ToString(out.MessageId), nil
}
