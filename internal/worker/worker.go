// Package worker provides a NATS worker that processes speech synthesis jobs.
// It is the event-driven twin of the POST /v1/speech endpoint: jobs arrive as
// JSON on a subject and the reply mirrors the HTTP status envelope.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/langbridge/speech-service/internal/speech"
)

const handleMessageTimeout = 30 * time.Second

// SynthesizeRunner is the subset of the speech service used by the worker.
type SynthesizeRunner interface {
	Synthesize(ctx context.Context, input speech.SynthesizeInput) (*speech.SynthesizeResult, error)
}

// JobReply is the response envelope published for each processed job.
type JobReply struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Bucket     string `json:"bucket,omitempty"`
	Key        string `json:"key,omitempty"`
}

// NatsWorker listens for synthesis jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	runner         SynthesizeRunner
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	runner SynthesizeRunner,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		runner:         runner,
		log:            log,
	}, nil
}

// Run starts the worker and begins listening for messages. It blocks until
// ctx is cancelled, then drains the subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var job speech.SynthesizeInput

	err := json.Unmarshal(msg.Data, &job)
	if err != nil {
		w.log.Error("Failed to unmarshal synthesis job: %v", err)
		w.reply(msg, JobReply{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("invalid job payload: %v", err),
		})

		return
	}

	result, err := w.runner.Synthesize(ctx, job)
	if err != nil {
		w.log.Error("Failed to process synthesis job for key '%s': %v", job.OutputKey, err)
		w.reply(msg, JobReply{
			StatusCode: statusFromError(err),
			Message:    err.Error(),
		})

		return
	}

	w.reply(msg, JobReply{
		StatusCode: http.StatusOK,
		Message:    "Audio saved to " + result.Bucket + "/" + result.Key,
		Bucket:     result.Bucket,
		Key:        result.Key,
	})
}

func (w *NatsWorker) reply(msg *nats.Msg, jobReply JobReply) {
	if msg.Reply == "" {
		return
	}

	replyData, err := json.Marshal(jobReply)
	if err != nil {
		w.log.Error("Failed to marshal job reply: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish job reply: %v", err)
	}
}

func statusFromError(err error) int {
	if errors.Is(err, speech.ErrTextEmpty) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}
