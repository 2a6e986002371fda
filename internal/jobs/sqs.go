package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// SQSConfig configures the production queue binding. Grounded on the
// teacher's internal/artifacts.S3StoreConfig / NewS3Store client-setup
// idiom, retargeted from S3 to SQS, and on
// original_source/api/src/api/controller/chat.py's
// boto3.client("sqs").send_message(QueueUrl=..., MessageBody=...) call,
// whose `{"chat_id": ...}` message body this dispatcher's wireMessage
// reproduces (extended with the optional bot_name/user_id fields
// spec.md §4.8 adds to the queue message shape).
type SQSConfig struct {
	QueueURL          string
	Region            string
	Endpoint          string
	VisibilityTimeout time.Duration
	WaitTime          time.Duration
}

// DefaultSQSConfig returns the default configuration.
func DefaultSQSConfig() *SQSConfig {
	return &SQSConfig{
		Region:            "us-east-1",
		VisibilityTimeout: DefaultVisibilityTimeout,
		WaitTime:          20 * time.Second,
	}
}

// SQSDispatcher is the production Dispatcher binding.
type SQSDispatcher struct {
	client   *awssqs.Client
	queueURL string
	vis      int32
	wait     int32
}

// NewSQSDispatcher loads AWS credentials the standard SDK way (env,
// shared config, instance profile) and binds to a single queue URL.
func NewSQSDispatcher(ctx context.Context, cfg *SQSConfig) (*SQSDispatcher, error) {
	if cfg == nil {
		cfg = DefaultSQSConfig()
	}
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, fmt.Errorf("sqs queue url is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := awssqs.NewFromConfig(awsCfg, func(o *awssqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	vis := cfg.VisibilityTimeout
	if vis <= 0 {
		vis = DefaultVisibilityTimeout
	}
	wait := cfg.WaitTime
	if wait <= 0 {
		wait = 20 * time.Second
	}

	return &SQSDispatcher{
		client:   client,
		queueURL: cfg.QueueURL,
		vis:      int32(vis.Seconds()),
		wait:     int32(wait.Seconds()),
	}, nil
}

type wireMessage struct {
	ChatID  string `json:"chat_id"`
	BotName string `json:"bot_name,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

func (d *SQSDispatcher) Enqueue(ctx context.Context, job models.Job) error {
	body, err := json.Marshal(wireMessage{ChatID: job.ChatID, BotName: job.BotName, UserID: job.UserID})
	if err != nil {
		return fmt.Errorf("marshal job message: %w", err)
	}
	_, err = d.client.SendMessage(ctx, &awssqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send sqs message: %w", err)
	}
	return nil
}

// Receive performs a single long-poll ReceiveMessage call with
// MaxNumberOfMessages=1, so the same worker loop shape
// (for { del, _ := d.Receive(ctx); process(del) }) works unchanged
// against either binding.
func (d *SQSDispatcher) Receive(ctx context.Context) (*Delivery, error) {
	out, err := d.client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:              aws.String(d.queueURL),
		MaxNumberOfMessages:   1,
		VisibilityTimeout:     d.vis,
		WaitTimeSeconds:       d.wait,
		MessageAttributeNames: []string{"ApproximateReceiveCount"},
		AttributeNames:        []awssqs.QueueAttributeName{awssqs.QueueAttributeNameApproximateReceiveCount},
	})
	if err != nil {
		return nil, fmt.Errorf("receive sqs message: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	msg := out.Messages[0]
	var wire wireMessage
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &wire); err != nil {
		// Malformed body: ack it so it doesn't wedge the queue forever,
		// and surface the error to the caller.
		_, _ = d.client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
			QueueUrl:      aws.String(d.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		})
		return nil, fmt.Errorf("decode job message: %w", err)
	}

	receipt := 1
	if raw, ok := msg.Attributes[string(awssqs.QueueAttributeNameApproximateReceiveCount)]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			receipt = n
		}
	}

	return &Delivery{
		Job:     models.Job{ChatID: wire.ChatID, BotName: wire.BotName, UserID: wire.UserID},
		Handle:  aws.ToString(msg.ReceiptHandle),
		Receipt: receipt,
	}, nil
}

func (d *SQSDispatcher) Ack(ctx context.Context, del *Delivery) error {
	_, err := d.client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(d.queueURL),
		ReceiptHandle: aws.String(del.Handle),
	})
	if err != nil {
		return fmt.Errorf("delete sqs message: %w", err)
	}
	return nil
}

// Nack sets the message's visibility timeout to zero, making it
// immediately eligible for redelivery instead of waiting out the full
// window.
func (d *SQSDispatcher) Nack(ctx context.Context, del *Delivery) error {
	_, err := d.client.ChangeMessageVisibility(ctx, &awssqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(d.queueURL),
		ReceiptHandle:     aws.String(del.Handle),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("release sqs message: %w", err)
	}
	return nil
}

func (d *SQSDispatcher) Close() error { return nil }
