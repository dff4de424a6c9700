package mq

import "context"

// Queue is an at-least-once job queue. Receive returns (nil, nil) when a poll
// finds nothing; a received message stays invisible for visibilityTimeout
// seconds and reappears unless it is deleted.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, visibilityTimeout int32) (*Message, error)
	Delete(ctx context.Context, msg *Message) error
}

type Message struct {
	ReceiptHandle string
	Body          string
}
