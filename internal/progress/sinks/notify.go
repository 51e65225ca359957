package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/collection-ingest/internal/progress"
)

// Publisher is the narrow topic-publish contract the notify sink needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// JobSummary is the message published when a job finishes.
type JobSummary struct {
	JobID          string    `json:"job_id"`
	Result         string    `json:"result"`
	Total          int       `json:"total"`
	Success        int       `json:"success"`
	Failed         int       `json:"failed"`
	RemainingCount int       `json:"remaining_count,omitempty"`
	DownloadToken  string    `json:"download_token,omitempty"`
	Message        string    `json:"message,omitempty"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	FinishedAt     time.Time `json:"finished_at"`
}

// NotifySink publishes one JobSummary per terminal event.
type NotifySink struct {
	pub   Publisher
	topic string

	// pending carries blocked details until the matching complete arrives.
	pending map[string]progress.Event
}

// NewNotifySink builds a sink that publishes summaries to topic.
func NewNotifySink(pub Publisher, topic string) *NotifySink {
	return &NotifySink{pub: pub, topic: topic, pending: make(map[string]progress.Event)}
}

// Consume publishes summaries for terminal events in the batch.
func (s *NotifySink) Consume(ctx context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		if evt.Type == progress.TypeBlocked {
			s.pending[evt.JobID] = evt
			continue
		}
		if !evt.Terminal() {
			continue
		}
		summary := JobSummary{
			JobID:          evt.JobID,
			Result:         resultSuccess,
			Total:          evt.Total,
			Success:        evt.Success,
			Failed:         evt.Failed,
			Message:        evt.Message,
			ElapsedSeconds: evt.Elapsed.Seconds(),
			FinishedAt:     evt.TS.UTC(),
		}
		if evt.Type == progress.TypeError {
			summary.Result = resultError
		}
		if blocked, ok := s.pending[evt.JobID]; ok {
			summary.Result = resultBlocked
			summary.RemainingCount = blocked.RemainingCount
			summary.DownloadToken = blocked.DownloadToken
			delete(s.pending, evt.JobID)
		}
		if _, err := s.pub.Publish(ctx, s.topic, summary); err != nil {
			return fmt.Errorf("publish job summary %s: %w", evt.JobID, err)
		}
	}
	return nil
}

// Close implements progress.Sink.
func (s *NotifySink) Close(context.Context) error {
	return nil
}
