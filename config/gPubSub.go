package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
)

// PostingEvent is the wire shape published to the posting-events topic after a
// posting group commits. Consumers (statement caches, notification fan-out)
// must treat delivery as at-least-once.
type PostingEvent struct {
	ID             int       `json:"id"`
	TenantId       string    `json:"tenant_id"`
	PostingGroupId int       `json:"posting_group_id"`
	SourceType     string    `json:"source_type"`
	SourceId       int       `json:"source_id"`
	EventType      string    `json:"event_type"`
	PostingDate    time.Time `json:"posting_date"`
	CorrelationId  string    `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	godotenv.Load()
}

func GetPubSubTopicID() string {
	if v := os.Getenv("POSTING_EVENTS_TOPIC"); v != "" {
		return v
	}
	return "posting-events"
}

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return ""
}

// GetPubSubClient returns a Pub/Sub client using Application Default
// Credentials, initializing lazily with retries.
func GetPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		return pubsubClient, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var attempt int
	for {
		attempt++
		client, err := pubsub.NewClient(ctx, projectID)
		if err == nil {
			pubsubClient = client
			return client, nil
		}
		if attempt >= 5 {
			return nil, err
		}
		sleep := time.Second * time.Duration(attempt)
		log.Printf("failed to create pubsub client (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// PublishPostingEvent publishes one event to the posting-events topic and
// returns the Pub/Sub message id. Ordering key is the tenant, so consumers
// see a tenant's groups in publish order.
func PublishPostingEvent(ctx context.Context, event PostingEvent) (string, error) {
	client, err := GetPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	topic := client.Topic(GetPubSubTopicID())
	topic.EnableMessageOrdering = true
	result := topic.Publish(ctx, &pubsub.Message{
		Data:        payload,
		OrderingKey: event.TenantId,
		Attributes: map[string]string{
			"event_type":  event.EventType,
			"source_type": event.SourceType,
		},
	})
	return result.Get(ctx)
}
