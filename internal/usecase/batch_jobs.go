package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
	"reply-assistant/internal/domain/ports/repository"
	"reply-assistant/internal/infra/logging"
)

const (
	reportTopUsers   = 10
	maxChunkChars    = 1200
	excerptChars     = 280
	maxWriteBackCols = 50
)

// BatchJobs holds the handlers of the peripheral queues.
type BatchJobs struct {
	usage       repository.UsageRepository
	escalations repository.EscalationRepository
	index       repository.KnowledgeIndexRepository
	retention   repository.RetentionRepository
	trends      repository.TrendRepository
	tx          repository.TransactionManager
	webhooks    adapter.WebhookPoster
	classifier  *Classifier
	log         *zerolog.Logger
	now         func() time.Time
}

type BatchJobsDeps struct {
	Usage       repository.UsageRepository
	Escalations repository.EscalationRepository
	Index       repository.KnowledgeIndexRepository
	Retention   repository.RetentionRepository
	Trends      repository.TrendRepository
	// Tx makes a retention purge all-or-nothing. Nil runs each delete on its own.
	Tx          repository.TransactionManager
	Webhooks    adapter.WebhookPoster
	Classifier  *Classifier
}

func NewBatchJobs(deps BatchJobsDeps, logger *zerolog.Logger) *BatchJobs {
	return &BatchJobs{
		usage:       deps.Usage,
		escalations: deps.Escalations,
		index:       deps.Index,
		retention:   deps.Retention,
		trends:      deps.Trends,
		tx:          deps.Tx,
		webhooks:    deps.Webhooks,
		classifier:  deps.Classifier,
		log:         logger,
		now:         time.Now,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// WriteBack appends one row to an external sheet through its webhook.
func (b *BatchJobs) WriteBack(ctx context.Context, p model.WriteBackPayload) (model.WriteBackResult, error) {
	if p.WebhookURL == "" || len(p.Row) == 0 {
		return model.WriteBackResult{}, invalid("write-back needs a webhook url and a row")
	}
	if len(p.Row) > maxWriteBackCols {
		return model.WriteBackResult{}, invalid("write-back row has %d columns, max %d", len(p.Row), maxWriteBackCols)
	}
	body := map[string]any{"tenant_id": p.TenantID, "sheet": p.Sheet, "row": p.Row}
	if err := b.webhooks.Post(ctx, p.WebhookURL, body); err != nil {
		return model.WriteBackResult{}, fmt.Errorf("write-back post: %w", err)
	}
	return model.WriteBackResult{Columns: len(p.Row)}, nil
}

// Report builds the monthly usage summary of a tenant and posts it to the callback, if any.
func (b *BatchJobs) Report(ctx context.Context, p model.ReportPayload) (model.ReportResult, error) {
	if p.TenantID == "" {
		return model.ReportResult{}, invalid("report needs a tenant")
	}
	period := p.Period
	if period == "" {
		period = model.UsagePeriod(b.now())
	}
	if _, err := time.Parse("2006-01", period); err != nil {
		return model.ReportResult{}, invalid("bad period %q", period)
	}

	sum, err := b.usage.MonthlySummary(ctx, repository.NoTX, p.TenantID, period, reportTopUsers)
	if err != nil {
		return model.ReportResult{}, fmt.Errorf("monthly summary: %w", err)
	}
	res := model.ReportResult{Total: sum.Total, ActiveUsers: sum.ActiveUsers}
	if p.CallbackURL == "" {
		return res, nil
	}
	if err := b.webhooks.Post(ctx, p.CallbackURL, sum); err != nil {
		return res, fmt.Errorf("report post: %w", err)
	}
	res.Delivered = true
	return res, nil
}

// BatchScan grades each message and stores escalations for the risky ones.
func (b *BatchJobs) BatchScan(ctx context.Context, p model.BatchScanPayload) (model.BatchScanResult, error) {
	if p.TenantID == "" || p.ConversationID == "" {
		return model.BatchScanResult{}, invalid("batch-scan needs tenant and conversation")
	}
	var found []model.Escalation
	for _, m := range p.Messages {
		s := b.classifier.Sentiment(m.Text)
		if s.Risk != model.RiskHigh {
			continue
		}
		at := m.Timestamp
		if at.IsZero() {
			at = b.now()
		}
		found = append(found, model.Escalation{
			TenantID:       p.TenantID,
			ConversationID: p.ConversationID,
			Score:          s.Score,
			Excerpt:        truncateRunes(m.Text, excerptChars),
			DetectedAt:     at.UTC(),
		})
	}
	if len(found) > 0 {
		if err := b.escalations.SaveAll(ctx, repository.NoTX, found); err != nil {
			return model.BatchScanResult{}, fmt.Errorf("save escalations: %w", err)
		}
		logging.With(ctx, b.log).Info().Str("conversation_id", p.ConversationID).Int("escalations", len(found)).Msg("batch scan flagged messages")
	}
	return model.BatchScanResult{Scanned: len(p.Messages), Escalations: len(found)}, nil
}

// Index replaces the knowledge-base chunks of one document.
func (b *BatchJobs) Index(ctx context.Context, p model.IndexPayload) (model.IndexResult, error) {
	if p.TenantID == "" || p.DocumentID == "" {
		return model.IndexResult{}, invalid("index needs tenant and document")
	}
	chunks := ChunkText(p.Body, maxChunkChars)
	if err := b.index.ReplaceChunks(ctx, repository.NoTX, p.TenantID, p.DocumentID, p.Title, chunks); err != nil {
		return model.IndexResult{}, fmt.Errorf("replace chunks: %w", err)
	}
	return model.IndexResult{Chunks: len(chunks)}, nil
}

// Retention purges audit and enrichment rows older than the window.
func (b *BatchJobs) Retention(ctx context.Context, p model.RetentionPayload) (model.RetentionResult, error) {
	if p.OlderThanDays <= 0 {
		return model.RetentionResult{}, invalid("retention window must be positive")
	}
	cutoff := b.now().UTC().AddDate(0, 0, -p.OlderThanDays)
	var n int64
	purge := func(ctx context.Context, tx repository.Tx) error {
		var err error
		n, err = b.retention.Purge(ctx, tx, cutoff)
		return err
	}
	var err error
	if b.tx != nil {
		err = b.tx.WithTx(ctx, pgx.TxOptions{}, purge)
	} else {
		err = purge(ctx, repository.NoTX)
	}
	if err != nil {
		return model.RetentionResult{}, fmt.Errorf("purge: %w", err)
	}
	logging.With(ctx, b.log).Info().Time("cutoff", cutoff).Int64("purged", n).Msg("retention purge done")
	return model.RetentionResult{Purged: n}, nil
}

// Aggregation recomputes topic trends for a day; the zero day means yesterday (UTC).
func (b *BatchJobs) Aggregation(ctx context.Context, p model.AggregationPayload) (model.AggregationResult, error) {
	day := p.Day
	if day.IsZero() {
		day = b.now().UTC().AddDate(0, 0, -1)
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	n, err := b.trends.RollupDay(ctx, repository.NoTX, day)
	if err != nil {
		return model.AggregationResult{}, fmt.Errorf("rollup %s: %w", day.Format("2006-01-02"), err)
	}
	return model.AggregationResult{Rows: n}, nil
}

// ChunkText splits text on paragraph boundaries into pieces of at most max
// characters. Paragraphs longer than max are cut on word boundaries.
func ChunkText(text string, max int) []string {
	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, piece := range splitLong(para, max) {
			if cur.Len() > 0 && utf8.RuneCountInString(cur.String())+2+utf8.RuneCountInString(piece) > max {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(piece)
		}
	}
	flush()
	return chunks
}

func splitLong(para string, max int) []string {
	if utf8.RuneCountInString(para) <= max {
		return []string{para}
	}
	var (
		out  []string
		line strings.Builder
		n    int
	)
	for _, w := range strings.Fields(para) {
		wl := utf8.RuneCountInString(w)
		if n > 0 && n+1+wl > max {
			out = append(out, line.String())
			line.Reset()
			n = 0
		}
		for wl > max {
			r := []rune(w)
			out = append(out, string(r[:max]))
			w = string(r[max:])
			wl -= max
		}
		if n > 0 {
			line.WriteByte(' ')
			n++
		}
		line.WriteString(w)
		n += wl
	}
	if n > 0 {
		out = append(out, line.String())
	}
	return out
}
