// Package sink holds the fire-and-forget collaborator interfaces: a
// notification publisher and an object store for archiving run results.
// Neither offers acknowledgment semantics; callers log failures and move on.
package sink

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// Notifier publishes a human-readable notice.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Store archives a payload under a key.
type Store interface {
	Put(ctx context.Context, key string, payload []byte) error
}

// LoadAWS resolves the ambient AWS configuration (env, shared config,
// instance role), optionally pinned to a region.
func LoadAWS(ctx context.Context, region string) (aws.Config, error) {
	if region != "" {
		return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	}
	return awsconfig.LoadDefaultConfig(ctx)
}

// NopNotifier drops every notice. Used when no topic is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) error { return nil }

// NopStore drops every payload. Used when no bucket is configured.
type NopStore struct{}

func (NopStore) Put(context.Context, string, []byte) error { return nil }
