package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/progress"
	"github.com/JakeFAU/collection-ingest/internal/publisher/memory"
	memstore "github.com/JakeFAU/collection-ingest/internal/storage/memory"
	"github.com/JakeFAU/collection-ingest/internal/store"
)

func blockedJob(id string) []progress.Event {
	now := time.Now()
	return []progress.Event{
		{Type: progress.TypeStart, JobID: id, TS: now, Total: 3},
		{
			Type: progress.TypeProgress, JobID: id, TS: now, Total: 3, Current: 1, Success: 1,
			Index: 1, Item: &catalog.ItemRef{ID: "item-1"},
		},
		{
			Type: progress.TypeBlocked, JobID: id, TS: now, Index: 2,
			RemainingCount: 2, DownloadToken: "tok",
		},
		{
			Type: progress.TypeComplete, JobID: id, TS: now.Add(3 * time.Second), Total: 3,
			Success: 1, Blocked: true, Elapsed: 3 * time.Second,
		},
	}
}

func TestPrometheusSinkRecordsBlockedJob(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), blockedJob("job-1")))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsCompleted.WithLabelValues(resultBlocked)))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsCompleted.WithLabelValues(resultSuccess)))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.remainingRows))
	require.Equal(t, 1, testutil.CollectAndCount(sink.jobRuntime, "ingest_job_runtime_seconds"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestPrometheusSinkRunningGaugeIgnoresUnknownJobs(t *testing.T) {
	t.Parallel()

	sink, err := NewPrometheusSink(prometheus.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{Type: progress.TypeError, JobID: "ghost", TS: time.Now(), Message: "boom"},
	}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsCompleted.WithLabelValues(resultError)))
}

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), blockedJob("job-2")))

	entries := logs.All()
	require.Len(t, entries, 4)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t, zap.DebugLevel, entries[1].Level)
	require.Equal(t, zap.WarnLevel, entries[2].Level)
	require.Equal(t, "job-2", entries[3].ContextMap()["job_id"])
}

func TestNotifySinkPublishesBlockedSummary(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	sink := NewNotifySink(pub, "ingest-jobs")
	require.NoError(t, sink.Consume(context.Background(), blockedJob("job-3")))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "ingest-jobs", msgs[0].Topic)
	summary, ok := msgs[0].Payload.(JobSummary)
	require.True(t, ok)
	require.Equal(t, resultBlocked, summary.Result)
	require.Equal(t, 2, summary.RemainingCount)
	require.Equal(t, "tok", summary.DownloadToken)
	require.InDelta(t, 3.0, summary.ElapsedSeconds, 1e-9)
	require.Empty(t, sink.pending)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) (string, error) {
	return "", errors.New("topic gone")
}

func TestNotifySinkPropagatesPublishError(t *testing.T) {
	t.Parallel()

	sink := NewNotifySink(failingPublisher{}, "t")
	err := sink.Consume(context.Background(), []progress.Event{
		{Type: progress.TypeComplete, JobID: "j", TS: time.Now()},
	})
	require.ErrorContains(t, err, "topic gone")
}

func TestStoreSinkRecordsJobRuns(t *testing.T) {
	t.Parallel()

	repo := memstore.NewJobStore()
	sink := NewStoreSink(repo, zap.NewNop())
	events := blockedJob("job-4")
	events[0].CollectionID = 9
	require.NoError(t, sink.Consume(context.Background(), events))

	run, err := repo.GetJob(context.Background(), "job-4")
	require.NoError(t, err)
	require.Equal(t, int64(9), run.CollectionID)
	require.Equal(t, store.RunBlocked, run.Status)
	require.Equal(t, 2, run.Remaining)
	require.Equal(t, 1, run.Success)
	require.NotNil(t, run.FinishedAt)
}

func TestStoreSinkRecordsFatalError(t *testing.T) {
	t.Parallel()

	repo := memstore.NewJobStore()
	sink := NewStoreSink(repo, nil)
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{Type: progress.TypeStart, JobID: "job-5", TS: now, Total: 1},
		{Type: progress.TypeError, JobID: "job-5", TS: now, Message: "boom"},
	}))

	run, err := repo.GetJob(context.Background(), "job-5")
	require.NoError(t, err)
	require.Equal(t, store.RunError, run.Status)
	require.Equal(t, "boom", *run.ErrorMessage)
}
