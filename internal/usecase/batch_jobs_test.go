//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
	"reply-assistant/internal/usecase"
)

type mockEscalationRepo struct {
	mu    sync.Mutex
	items []model.Escalation
}

func (m *mockEscalationRepo) SaveAll(_ context.Context, _ repository.Tx, items []model.Escalation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
	return nil
}

type mockIndexRepo struct {
	docID  string
	chunks []string
}

func (m *mockIndexRepo) ReplaceChunks(_ context.Context, _ repository.Tx, _, documentID, _ string, chunks []string) error {
	m.docID, m.chunks = documentID, chunks
	return nil
}

type mockRetentionRepo struct {
	cutoff time.Time
	tx     repository.Tx
	err    error
}

func (m *mockRetentionRepo) Purge(_ context.Context, tx repository.Tx, cutoff time.Time) (int64, error) {
	m.cutoff = cutoff
	m.tx = tx
	if m.err != nil {
		return 2, m.err
	}
	return 7, nil
}

type mockTrendRepo struct{ day time.Time }

func (m *mockTrendRepo) RollupDay(_ context.Context, _ repository.Tx, day time.Time) (int64, error) {
	m.day = day
	return 3, nil
}

type batchFixture struct {
	jobs        *usecase.BatchJobs
	usage       *mockUsageRepo
	escalations *mockEscalationRepo
	index       *mockIndexRepo
	retention   *mockRetentionRepo
	trends      *mockTrendRepo
	tx          *MockTxManager
	webhook     *mockWebhook
}

func newBatchFixture() *batchFixture {
	f := &batchFixture{
		usage:       &mockUsageRepo{summary: &model.UsageSummary{Total: 42, ActiveUsers: 3, Limit: 100}},
		escalations: &mockEscalationRepo{},
		index:       &mockIndexRepo{},
		retention:   &mockRetentionRepo{},
		trends:      &mockTrendRepo{},
		tx:          &MockTxManager{},
		webhook:     &mockWebhook{},
	}
	f.jobs = usecase.NewBatchJobs(usecase.BatchJobsDeps{
		Usage:       f.usage,
		Escalations: f.escalations,
		Index:       f.index,
		Retention:   f.retention,
		Trends:      f.trends,
		Tx:          f.tx,
		Webhooks:    f.webhook,
		Classifier:  usecase.NewClassifier(),
	}, newTestLogger())
	return f
}

func TestBatchJobs(t *testing.T) {
	ctx := context.Background()

	t.Run("write-back posts the row", func(t *testing.T) {
		f := newBatchFixture()
		res, err := f.jobs.WriteBack(ctx, model.WriteBackPayload{TenantID: "t1", WebhookURL: "https://sheets.example.com/h", Sheet: "Leads", Row: []string{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Columns)
		require.Len(t, f.webhook.Calls(), 1)
	})

	t.Run("write-back without url is terminal", func(t *testing.T) {
		f := newBatchFixture()
		_, err := f.jobs.WriteBack(ctx, model.WriteBackPayload{Row: []string{"a"}})
		assert.True(t, domain.IsTerminal(err))
	})

	t.Run("report summarizes and posts when asked", func(t *testing.T) {
		f := newBatchFixture()
		res, err := f.jobs.Report(ctx, model.ReportPayload{TenantID: "t1", Period: "2026-09", CallbackURL: "https://r.example.com"})
		require.NoError(t, err)
		assert.Equal(t, model.ReportResult{Total: 42, ActiveUsers: 3, Delivered: true}, res)
		sum := f.webhook.Calls()[0].Payload.(*model.UsageSummary)
		assert.Equal(t, "2026-09", sum.Period)
	})

	t.Run("report rejects a malformed period", func(t *testing.T) {
		f := newBatchFixture()
		_, err := f.jobs.Report(ctx, model.ReportPayload{TenantID: "t1", Period: "Sept"})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("batch scan flags only high-risk messages", func(t *testing.T) {
		f := newBatchFixture()
		res, err := f.jobs.BatchScan(ctx, model.BatchScanPayload{
			TenantID:       "t1",
			ConversationID: "c1",
			Messages: []model.ContextMessage{
				{Text: "Thanks, that was helpful!"},
				{Text: "This is unacceptable, I want a manager."},
				{Text: "When is the meeting?"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, model.BatchScanResult{Scanned: 3, Escalations: 1}, res)
		require.Len(t, f.escalations.items, 1)
		assert.Contains(t, f.escalations.items[0].Excerpt, "unacceptable")
	})

	t.Run("index stores chunks", func(t *testing.T) {
		f := newBatchFixture()
		res, err := f.jobs.Index(ctx, model.IndexPayload{TenantID: "t1", DocumentID: "d1", Title: "FAQ", Body: "First.\n\nSecond."})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Chunks)
		assert.Equal(t, "d1", f.index.docID)
	})

	t.Run("retention computes the cutoff", func(t *testing.T) {
		f := newBatchFixture()
		before := time.Now().UTC()
		res, err := f.jobs.Retention(ctx, model.RetentionPayload{OlderThanDays: 30})
		require.NoError(t, err)
		assert.Equal(t, int64(7), res.Purged)
		assert.WithinDuration(t, before.AddDate(0, 0, -30), f.retention.cutoff, time.Minute)

		_, err = f.jobs.Retention(ctx, model.RetentionPayload{})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("retention purges inside one transaction", func(t *testing.T) {
		f := newBatchFixture()
		_, err := f.jobs.Retention(ctx, model.RetentionPayload{OlderThanDays: 7})
		require.NoError(t, err)
		assert.Equal(t, mockTx{}, f.retention.tx)
		assert.Equal(t, 1, f.tx.Committed)
	})

	t.Run("failed purge rolls back", func(t *testing.T) {
		f := newBatchFixture()
		f.retention.err = errors.New("lock timeout")
		_, err := f.jobs.Retention(ctx, model.RetentionPayload{OlderThanDays: 7})
		require.Error(t, err)
		assert.Equal(t, 1, f.tx.RolledBack)
		assert.Zero(t, f.tx.Committed)
	})

	t.Run("aggregation defaults to yesterday at midnight UTC", func(t *testing.T) {
		f := newBatchFixture()
		res, err := f.jobs.Aggregation(ctx, model.AggregationPayload{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.Rows)
		want := time.Now().UTC().AddDate(0, 0, -1)
		assert.Equal(t, want.Format("2006-01-02"), f.trends.day.Format("2006-01-02"))
		assert.Zero(t, f.trends.day.Hour())
	})
}

func TestChunkText(t *testing.T) {
	t.Run("packs paragraphs up to the limit", func(t *testing.T) {
		text := strings.Repeat("word ", 10) + "\n\n" + strings.Repeat("next ", 10) + "\n\n" + strings.Repeat("last ", 30)
		chunks := usecase.ChunkText(text, 120)
		require.Len(t, chunks, 3)
		assert.Equal(t, strings.TrimSpace(strings.Repeat("word ", 10))+"\n\n"+strings.TrimSpace(strings.Repeat("next ", 10)), chunks[0])
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), 120)
		}
	})

	t.Run("splits oversized paragraphs on words", func(t *testing.T) {
		chunks := usecase.ChunkText(strings.Repeat("abcd ", 100), 50)
		assert.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), 50)
			assert.False(t, strings.HasSuffix(c, "abc"))
		}
	})

	t.Run("empty body has no chunks", func(t *testing.T) {
		assert.Empty(t, usecase.ChunkText(" \n\n ", 100))
	})
}

func TestClassifier(t *testing.T) {
	c := usecase.NewClassifier()

	assert.Equal(t, []string{"billing", "shipping"}, c.Topics("Where is my refund and the tracking number?"))

	pos := c.Sentiment("Thanks, this is great!")
	assert.Equal(t, "positive", pos.Label)
	assert.Equal(t, model.RiskLow, pos.Risk)

	neg := c.Sentiment("This is not good, terrible and slow.")
	assert.Equal(t, "negative", neg.Label)
	assert.Equal(t, model.RiskHigh, neg.Risk)

	assert.Equal(t, model.RiskHigh, c.Sentiment("I will call my lawyer").Risk)
	assert.Equal(t, "neutral", c.Sentiment("The meeting is at 3pm.").Label)
}
