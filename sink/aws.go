package sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// S3Store archives payloads as JSON objects in one bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates a store for the given bucket.
func NewS3Store(cfg aws.Config, bucket string) *S3Store {
	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}
}

// Put uploads the payload under the key.
func (s *S3Store) Put(ctx context.Context, key string, payload []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// SNSNotifier publishes notices to one topic.
type SNSNotifier struct {
	client *sns.Client
	topic  string
}

// NewSNSNotifier creates a notifier for the given topic ARN.
func NewSNSNotifier(cfg aws.Config, topicARN string) *SNSNotifier {
	return &SNSNotifier{
		client: sns.NewFromConfig(cfg),
		topic:  topicARN,
	}
}

// Notify publishes one notice. SNS caps subjects at 100 characters, so
// longer ones are truncated rather than rejected.
func (n *SNSNotifier) Notify(ctx context.Context, subject, body string) error {
	if len(subject) > 100 {
		subject = subject[:100]
	}
	_, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topic),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("sns publish to %s: %w", n.topic, err)
	}
	return nil
}
