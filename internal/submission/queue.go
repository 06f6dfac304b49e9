package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Queue hands submissions to an asynchronous backend over SQS. The receipt
// reference is the SQS message id.
type Queue[T any] struct {
	client   sqsAPI
	queueURL string
	clock    func() time.Time
	logger   *logging.Logger
}

// NewQueue creates a queue submitter around the provided SQS client.
func NewQueue[T any](client *sqs.Client, queueURL string, logger *logging.Logger) *Queue[T] {
	if client == nil {
		panic("submission: SQS client cannot be nil")
	}
	return newQueue[T](client, queueURL, logger)
}

func newQueue[T any](client sqsAPI, queueURL string, logger *logging.Logger) *Queue[T] {
	if queueURL == "" {
		panic("submission: SQS queueURL cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Queue[T]{
		client:   client,
		queueURL: queueURL,
		clock:    func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

func (q *Queue[T]) Submit(ctx context.Context, req wizard.SubmitRequest[T]) (*wizard.Receipt, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("submission: marshal request: %w", err)
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"flow":            {DataType: aws.String("String"), StringValue: aws.String(req.Flow)},
			"idempotency_key": {DataType: aws.String("String"), StringValue: aws.String(req.IdempotencyKey)},
		},
	}
	if strings.HasSuffix(q.queueURL, ".fifo") {
		input.MessageGroupId = aws.String(req.Flow)
		input.MessageDeduplicationId = aws.String(req.IdempotencyKey)
	}

	out, err := q.client.SendMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send SQS message: %w", wizard.ErrNetwork, err)
	}
	messageID := aws.ToString(out.MessageId)
	q.logger.Info("submission enqueued", "flow", req.Flow, "session_id", req.SessionID, "message_id", messageID)
	return &wizard.Receipt{
		Reference:   messageID,
		Flow:        req.Flow,
		SessionID:   req.SessionID,
		TotalCents:  req.TotalCents,
		SubmittedAt: q.clock(),
	}, nil
}
