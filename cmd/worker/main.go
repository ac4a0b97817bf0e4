package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/digital-marketplace/internal/aws"
	"github.com/imrishuroy/digital-marketplace/internal/config"
	"github.com/imrishuroy/digital-marketplace/internal/email"
	"github.com/imrishuroy/digital-marketplace/internal/idempotency"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	clients, err := aws.NewAWSClients(context.Background(), cfg.Region)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	p := NewProcessor(
		idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, cfg.Worker.IdempotencyTTL),
		email.NewSender(clients.SES, cfg.Worker.SESFromAddress),
	)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if cfg.API.RunLocal {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"orderId":"local-order-1","emailTo":"buyer@example.com","orderDate":"2026-01-01","shippingAddressCity":"Berlin","shippingAddressCountry":"DE"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{MessageId: "local-1", Body: testBody},
			},
		}
		if err := p.Handle(context.Background(), event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(p.Handle)
}
