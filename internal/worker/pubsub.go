package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Dispatcher routes decoded job messages to the batch job.
type Dispatcher struct {
	job    *BatchJob
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher for job.
func NewDispatcher(job *BatchJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Handle processes one message payload and reports whether it should be acked.
// Malformed payloads are nacked so the subscription's dead-letter policy sees them;
// unknown job types and invalid batches are acked since redelivery cannot help.
func (d *Dispatcher) Handle(ctx context.Context, messageID string, data []byte) bool {
	start := time.Now()
	logger := d.logger.With().Str("message_id", messageID).Logger()

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return false
	}
	logger = logger.With().Str("job_type", msg.JobType).Logger()

	var err error
	switch msg.JobType {
	case JobScoreBatch:
		err = d.handleScoreBatch(ctx, logger, msg)
	case JobHealthCheck:
		err = d.job.HealthCheck(ctx)
	default:
		logger.Warn().Msg("unknown job type")
		return true
	}

	switch {
	case errors.Is(err, ErrInvalidJob):
		logger.Warn().Err(err).Msg("dropping invalid job")
		return true
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		return false
	}

	logger.Info().Dur("duration", time.Since(start)).Msg("job completed")
	return true
}

func (d *Dispatcher) handleScoreBatch(ctx context.Context, logger zerolog.Logger, msg JobMessage) error {
	result, err := d.job.Run(ctx, msg)
	if err != nil {
		return err
	}
	if result.UnknownProfile {
		logger.Warn().Str("profile_id", msg.ProfileID).Msg("batch used an unknown profile")
		return fmt.Errorf("%w: unknown profile %q", ErrInvalidJob, msg.ProfileID)
	}
	return nil
}

// PubSubHandler receives job messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger

	// MaxOutstandingMessages bounds concurrently handled messages (default: 10).
	MaxOutstandingMessages int
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("worker: dispatcher is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	maxOutstanding := cfg.MaxOutstandingMessages
	if maxOutstanding <= 0 {
		maxOutstanding = 10
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.dispatcher.Handle(ctx, msg.ID, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}
