package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"groupwarden.app/warden/common/logger"
	"groupwarden.app/warden/internal/model"
	"groupwarden.app/warden/internal/queue"
	"groupwarden.app/warden/internal/service"
)

const (
	taskStatusDone   = "done"
	taskStatusFailed = "failed"
)

// Worker drains enrichment completions from the stream and folds each one
// back into the moderation loop: append the summary to the user's enriched
// window, mark the task done, then re-evaluate the message now that its
// media content is understood.
type Worker struct {
	consumer   *queue.RedisConsumer
	cache      EnrichedCache
	builder    ContextBuilder
	classifier service.Classifier
	moderator  Moderator

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer *queue.RedisConsumer, cache EnrichedCache, builder ContextBuilder, classifier service.Classifier, moderator Moderator) *Worker {
	return &Worker{
		consumer:   consumer,
		cache:      cache,
		builder:    builder,
		classifier: classifier,
		moderator:  moderator,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "enrichment worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "enrichment worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "completion processing failed",
				"error", err,
				"stream_id", msg.ID,
				"message_id", msg.Completion.MessageID)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in completion processing",
				"panic", r,
				"stream_id", msg.ID,
				"message_id", msg.Completion.MessageID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessCompletion(ctx, msg)
}

// ProcessCompletion applies one enrichment completion end to end. The cache
// append and task-status write must succeed before the message is acked;
// the re-evaluation is best-effort and never causes a redelivery, since the
// enriched window is already updated.
func (w *Worker) ProcessCompletion(ctx context.Context, msg queue.Message) error {
	c := msg.Completion
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(c.UserID),
		GroupID:   logger.Ptr(c.GroupID),
		MessageID: logger.Ptr(c.MessageID),
		StreamID:  logger.Ptr(msg.ID),
		Component: "warden.worker",
	})

	slog.InfoContext(ctx, "processing enrichment completion", "attempt", c.Attempt)

	createdAt := c.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339)
	}

	item := model.EnrichedSummary{
		ID:        c.MessageID,
		Summary:   c.Summary,
		CreatedAt: createdAt,
	}
	if err := w.cache.AppendUserGroupEnriched(ctx, c.UserID, c.GroupID, item); err != nil {
		if statusErr := w.cache.SetTaskStatus(ctx, c.MessageID, taskStatusFailed); statusErr != nil {
			slog.WarnContext(ctx, "writing failed task status failed", "error", statusErr)
		}
		return fmt.Errorf("appending enriched summary: %w", err)
	}

	if err := w.cache.SetTaskStatus(ctx, c.MessageID, taskStatusDone); err != nil {
		return fmt.Errorf("writing task status: %w", err)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The append is idempotent enough to survive a redelivery: the
		// window dedupes by message id on read.
		slog.WarnContext(ctx, "failed to ack completion", "error", err)
	}

	w.reevaluate(ctx, c)
	return nil
}

// reevaluate runs the moderation pass again with the enriched summary in
// context.
func (w *Worker) reevaluate(ctx context.Context, c queue.Completion) {
	newMessage := model.CachedMessage{
		ID:        c.MessageID,
		Type:      model.MessageTypeText,
		Text:      c.Summary,
		UserID:    c.UserID,
		GroupID:   c.GroupID,
		CreatedAt: c.CreatedAt,
	}

	bundle, err := w.builder.BuildContext(ctx, c.UserID, c.GroupID, newMessage)
	if err != nil {
		slog.ErrorContext(ctx, "re-evaluation context build failed", "error", err)
		return
	}
	if len(bundle.RecentGroupMessages) == 0 {
		slog.InfoContext(ctx, "skipping re-evaluation, no group context")
		return
	}

	verdict, err := w.classifier.Classify(ctx, bundle)
	if err != nil {
		slog.ErrorContext(ctx, "re-evaluation classification failed", "error", err)
		return
	}

	action, err := w.moderator.EvaluateVerdict(ctx, verdict, bundle)
	if err != nil {
		slog.ErrorContext(ctx, "re-evaluation treatment failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "re-evaluation completed", "spam", verdict.Spam, "action", action)
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Completion.Attempt >= w.consumer.MaxAttempts() {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"stream_id", msg.ID,
			"message_id", msg.Completion.MessageID,
			"attempts", msg.Completion.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed completion",
		"stream_id", msg.ID,
		"message_id", msg.Completion.MessageID,
		"attempt", msg.Completion.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue completion", "error", requeueErr)
	}
}
