package awstest

import (
	"context"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

// SentMessage is one message captured by the SQS fake.
type SentMessage struct {
	QueueURL   string
	Body       string
	Attributes map[string]string
}

// SQS records every SendMessage call.
type SQS struct {
	mu   sync.Mutex
	Sent []SentMessage
	// Err, when set, is returned by every SendMessage call.
	Err error
}

func (s *SQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	attrs := map[string]string{}
	for k, v := range in.MessageAttributes {
		attrs[k] = sdkaws.ToString(v.StringValue)
	}
	s.Sent = append(s.Sent, SentMessage{
		QueueURL:   sdkaws.ToString(in.QueueUrl),
		Body:       sdkaws.ToString(in.MessageBody),
		Attributes: attrs,
	})
	return &sqs.SendMessageOutput{MessageId: sdkaws.String(uuid.NewString())}, nil
}

// Messages returns a copy of the captured messages.
func (s *SQS) Messages() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.Sent...)
}
