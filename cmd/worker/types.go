package main

import "github.com/imrishuroy/digital-marketplace/internal/notify"

// kindOrderReceived is the "kind" message attribute set by POST /api/send.
const kindOrderReceived = "order-received"

// WorkerMessage is the payload sent from API -> SQS -> Worker.
type WorkerMessage = notify.EmailData
