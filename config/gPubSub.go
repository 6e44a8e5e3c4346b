package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

const pubsubMaxAttempts = 4

// ClosingEvent is published after a daily closing commits. Downstream jobs
// (report rendering, mail) consume it; the register does not wait for them.
type ClosingEvent struct {
	ClosingId       int       `json:"closing_id"`
	ClosingDate     string    `json:"closing_date"`
	Action          string    `json:"action"`
	TotalSales      string    `json:"total_sales"`
	TotalExpenses   string    `json:"total_expenses"`
	TotalInjections string    `json:"total_injections"`
	PreviousBalance string    `json:"previous_balance"`
	FinalBalance    string    `json:"final_balance"`
	UserId          int       `json:"user_id"`
	UserName        string    `json:"user_name"`
	OccurredAt      time.Time `json:"occurred_at"`
	CorrelationId   string    `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run sets this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return ""
}

// PubSubEnabled reports whether closing events have somewhere to go.
func PubSubEnabled() bool {
	return getPubSubProjectID() != "" && os.Getenv("PUBSUB_CLOSING_TOPIC") != ""
}

// getPubSubClient uses Application Default Credentials unless
// PUBSUB_CREDENTIALS_JSON is provided. Gives up after pubsubMaxAttempts.
func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		return pubsubClient, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}
	credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON")

	var lastErr error
	for attempt := 1; attempt <= pubsubMaxAttempts; attempt++ {
		var (
			c   *pubsub.Client
			err error
		)
		if credJSON != "" {
			c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
		} else {
			c, err = pubsub.NewClient(ctx, projectID)
		}
		if err == nil {
			pubsubClient = c
			log.Printf("pubsub client ready (project_id=%s attempt=%d)", projectID, attempt)
			return c, nil
		}
		lastErr = err
		if attempt == pubsubMaxAttempts {
			break
		}
		sleep := backoff(attempt)
		log.Printf("failed to init pubsub client (project_id=%s attempt=%d): %v; retrying in %s", projectID, attempt, err, sleep)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, fmt.Errorf("pubsub client: %w", lastErr)
}

// PublishClosingEvent publishes and returns the server-assigned message id.
func PublishClosingEvent(ctx context.Context, msg ClosingEvent) (string, error) {
	topicName := os.Getenv("PUBSUB_CLOSING_TOPIC")
	if topicName == "" {
		return "", errors.New("PUBSUB_CLOSING_TOPIC is required")
	}
	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	result := client.Topic(topicName).Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"action":       msg.Action,
			"closing_date": msg.ClosingDate,
		},
	})
	return result.Get(ctx)
}

func ClosePubSub() {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		_ = pubsubClient.Close()
		pubsubClient = nil
	}
}
