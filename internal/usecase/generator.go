package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
	"reply-assistant/internal/domain/ports/repository"
	"reply-assistant/internal/infra/logging"
	"reply-assistant/internal/infra/metrics"
)

type GeneratorConfig struct {
	Model           string
	MaxTokens       int
	Temperature     float64
	ProviderTimeout time.Duration
}

// GeneratorDeps groups the collaborators of a Generator.
type GeneratorDeps struct {
	Usage      UsageGate
	Policies   repository.GuardrailConfigRepository
	Enforcer   *GuardrailEnforcer
	Violations repository.ViolationRepository
	Provider   adapter.LanguageModelProvider
	Assembler  *PromptAssembler
	Contexts   *ContextBuilder
	Styles     repository.StyleRepository
	Pricing    repository.ModelPricingRepository
	Costs      repository.CostRepository
	Audit      repository.SuggestionRepository
	Enrichment *EnrichmentPipeline
	Classifier *Classifier
	Sanitizer  *Sanitizer
	Detacher   *Detacher
}

// Generator produces reply suggestions under usage and content policy.
type Generator struct {
	GeneratorDeps
	cfg GeneratorConfig
	log *zerolog.Logger
	now func() time.Time
}

func NewGenerator(deps GeneratorDeps, cfg GeneratorConfig, logger *zerolog.Logger) *Generator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	return &Generator{GeneratorDeps: deps, cfg: cfg, log: logger, now: time.Now}
}

type buildFunc func(opts ...AssembleOption) adapter.CompletionRequest

// Generate runs one generation job. A usage denial is not an error: the
// suggestion comes back with empty Text and DenialReason set. The returned
// suggestion is never nil and always carries an ID.
func (g *Generator) Generate(ctx context.Context, job model.GenerationJob) (*model.Suggestion, error) {
	ctx = logging.WithUserID(logging.WithTenantID(ctx, job.TenantID), job.UserID)
	log := logging.With(ctx, g.log)
	defer logging.TraceDuration(log, "Generator.Generate")()

	start := g.now()
	s := &model.Suggestion{ID: model.NewSuggestionID(), Model: g.cfg.Model}
	if err := job.Validate(); err != nil {
		return s, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	if d := g.Usage.CheckUsageAllowed(ctx, job.TenantID, job.UserID); !d.Allowed {
		s.DenialReason = d.Reason
		s.ProcessingTime = g.now().Sub(start)
		log.Info().Str("suggestion_id", s.ID).Int64("usage", d.CurrentUsage).Int64("limit", d.Limit).Msg("generation denied by usage gate")
		g.audit(ctx, job.TenantID, job.UserID, job.ConversationID, job.Trigger, s)
		return s, nil
	}

	policy := g.policy(ctx, job.TenantID)
	style := g.style(ctx, job.TenantID, job.UserID)
	sentiment := g.Classifier.Sentiment(job.TriggerText)

	in := PromptInput{
		TenantID:        job.TenantID,
		UserID:          job.UserID,
		ConversationID:  job.ConversationID,
		TriggerText:     job.TriggerText,
		ContextMessages: job.ContextMessages,
		PersonIDs:       job.PersonIDs,
		Sentiment:       sentiment,
	}
	blocks := g.Contexts.Build(ctx, &in)
	system := g.Assembler.SystemBlocks(style)
	s.Personalization = personalization(style, len(job.ContextMessages) > 0)

	build := func(opts ...AssembleOption) adapter.CompletionRequest {
		return g.request(system, g.Assembler.Generation(in, blocks, opts...))
	}
	err := g.produce(ctx, s, job.TenantID, job.UserID, policy, build)
	s.ProcessingTime = g.now().Sub(start)
	g.audit(ctx, job.TenantID, job.UserID, job.ConversationID, job.Trigger, s)
	if err != nil {
		log.Warn().Err(err).Str("suggestion_id", s.ID).Msg("generation failed")
		return s, err
	}

	g.increment(ctx, job.TenantID, job.UserID)
	if g.Enrichment != nil {
		g.Enrichment.Enrich(ctx, job, s.ID, sentiment)
	}
	log.Info().Str("suggestion_id", s.ID).Dur("took", s.ProcessingTime).Bool("regenerated", s.Regenerated).Int("warnings", len(s.Warnings)).Msg("suggestion generated")
	return s, nil
}

// Refine revises a previous suggestion. Unlike Generate it reports a usage
// denial as domain.ErrUsageDenied, alongside the suggestion carrying the reason.
func (g *Generator) Refine(ctx context.Context, req model.RefineRequest) (*model.Suggestion, error) {
	ctx = logging.WithUserID(logging.WithTenantID(ctx, req.TenantID), req.UserID)
	log := logging.With(ctx, g.log)
	defer logging.TraceDuration(log, "Generator.Refine")()

	start := g.now()
	s := &model.Suggestion{ID: model.NewSuggestionID(), Model: g.cfg.Model}
	if err := req.Validate(); err != nil {
		return s, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	if d := g.Usage.CheckUsageAllowed(ctx, req.TenantID, req.UserID); !d.Allowed {
		s.DenialReason = d.Reason
		s.ProcessingTime = g.now().Sub(start)
		g.audit(ctx, req.TenantID, req.UserID, req.ConversationID, model.TriggerManualAction, s)
		return s, domain.ErrUsageDenied
	}

	policy := g.policy(ctx, req.TenantID)
	style := g.style(ctx, req.TenantID, req.UserID)
	system := g.Assembler.SystemBlocks(style)
	s.Personalization = personalization(style, len(req.History) > 0)

	build := func(opts ...AssembleOption) adapter.CompletionRequest {
		return g.request(system, g.Assembler.Refinement(req, opts...))
	}
	err := g.produce(ctx, s, req.TenantID, req.UserID, policy, build)
	s.ProcessingTime = g.now().Sub(start)
	g.audit(ctx, req.TenantID, req.UserID, req.ConversationID, model.TriggerManualAction, s)
	if err != nil {
		return s, err
	}
	g.increment(ctx, req.TenantID, req.UserID)
	return s, nil
}

// produce makes the provider call and applies the guardrail decision, with at
// most one regeneration round.
func (g *Generator) produce(ctx context.Context, s *model.Suggestion, tenantID, userID string, policy *model.GuardrailConfig, build buildFunc) error {
	text, err := g.call(ctx, s, tenantID, userID, build())
	if err != nil {
		return err
	}

	dec := g.Enforcer.Enforce(text, policy)
	g.recordViolations(ctx, tenantID, userID, s.ID, policy, dec.Violations)
	switch dec.Kind {
	case model.DecisionClean, model.DecisionWarned:
		s.Text, s.Warnings = dec.Text, dec.Warnings
		return nil
	case model.DecisionBlocked:
		return domain.ErrPolicyBlocked
	}

	s.Regenerated = true
	text, err = g.call(ctx, s, tenantID, userID, build(WithAvoidTopics(dec.AvoidTopics)))
	if err != nil {
		if errors.Is(err, domain.ErrGenerationFailed) {
			metrics.IncRegeneration("empty")
		} else {
			metrics.IncRegeneration("error")
		}
		return err
	}
	second := g.Enforcer.Enforce(text, policy)
	g.recordViolations(ctx, tenantID, userID, s.ID, policy, second.Violations)
	if second.Kind != model.DecisionClean && second.Kind != model.DecisionWarned {
		metrics.IncRegeneration("exhausted")
		return fmt.Errorf("%w: still violating after regeneration", domain.ErrPolicyBlocked)
	}
	metrics.IncRegeneration("recovered")
	s.Text, s.Warnings = second.Text, second.Warnings
	return nil
}

// call performs one provider round trip and returns sanitized text.
func (g *Generator) call(ctx context.Context, s *model.Suggestion, tenantID, userID string, req adapter.CompletionRequest) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, g.cfg.ProviderTimeout)
	defer cancel()

	comp, err := g.Provider.Complete(cctx, req)
	if err != nil {
		return "", fmt.Errorf("provider %s: %w", g.Provider.Name(), err)
	}
	s.Usage = s.Usage.Add(comp.Usage)
	g.recordCost(ctx, tenantID, userID, s.ID, comp.Usage)

	text := g.Sanitizer.Output(comp.Text)
	if text == "" {
		return "", domain.ErrGenerationFailed
	}
	return text, nil
}

func (g *Generator) request(system []adapter.SystemBlock, user string) adapter.CompletionRequest {
	return adapter.CompletionRequest{
		Model:        g.cfg.Model,
		SystemBlocks: system,
		UserPrompt:   user,
		MaxTokens:    g.cfg.MaxTokens,
		Temperature:  g.cfg.Temperature,
	}
}

// policy fails open: without a readable config nothing is enforced.
func (g *Generator) policy(ctx context.Context, tenantID string) *model.GuardrailConfig {
	cfg, err := g.Policies.Get(ctx, repository.NoTX, tenantID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logging.With(ctx, g.log).Warn().Err(err).Msg("guardrail config unavailable, not enforcing")
		}
		return nil
	}
	return cfg
}

func (g *Generator) style(ctx context.Context, tenantID, userID string) *model.StyleProfile {
	if g.Styles == nil {
		return nil
	}
	st, err := g.Styles.Get(ctx, repository.NoTX, tenantID, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logging.With(ctx, g.log).Warn().Err(err).Msg("style profile unavailable")
		}
		return nil
	}
	return st
}

func personalization(style *model.StyleProfile, historyUsed bool) model.Personalization {
	samples := 0
	if style != nil {
		samples = style.SampleCount
	}
	return model.Personalization{LearningPhase: model.LearningPhaseFor(samples), HistoryUsed: historyUsed}
}

func (g *Generator) increment(ctx context.Context, tenantID, userID string) {
	g.Detacher.Go(ctx, "usage_increment", func(ctx context.Context) error {
		return g.Usage.Increment(ctx, tenantID, userID)
	})
}

func (g *Generator) recordViolations(ctx context.Context, tenantID, userID, suggestionID string, policy *model.GuardrailConfig, vs []model.GuardrailViolation) {
	if len(vs) == 0 {
		return
	}
	mode := model.ParseTriggerMode(string(policy.TriggerMode))
	recs := make([]model.ViolationRecord, 0, len(vs))
	for _, v := range vs {
		metrics.IncGuardrailViolation(string(v.Type), string(mode))
		recs = append(recs, model.ViolationRecord{
			ID:           uuid.NewString(),
			TenantID:     tenantID,
			UserID:       userID,
			SuggestionID: suggestionID,
			Mode:         mode,
			Violation:    v,
		})
	}
	if g.Violations == nil {
		return
	}
	g.Detacher.Go(ctx, "record_violations", func(ctx context.Context) error {
		return g.Violations.SaveAll(ctx, repository.NoTX, recs)
	})
}

func (g *Generator) recordCost(ctx context.Context, tenantID, userID, suggestionID string, usage model.TokenUsage) {
	if g.Costs == nil {
		return
	}
	modelName := g.cfg.Model
	g.Detacher.Go(ctx, "record_cost", func(ctx context.Context) error {
		var micros int64
		if g.Pricing != nil {
			p, err := g.Pricing.GetByModelName(ctx, repository.NoTX, modelName)
			switch {
			case err == nil:
				micros = p.Cost(usage)
			case !errors.Is(err, domain.ErrNotFound):
				return fmt.Errorf("pricing lookup: %w", err)
			}
		}
		metrics.AddCost(modelName, micros)
		return g.Costs.Record(ctx, repository.NoTX, &model.CostEntry{
			ID:           uuid.NewString(),
			TenantID:     tenantID,
			UserID:       userID,
			SuggestionID: suggestionID,
			Model:        modelName,
			Usage:        usage,
			CostMicros:   micros,
			CreatedAt:    time.Now().UTC(),
		})
	})
}

func (g *Generator) audit(ctx context.Context, tenantID, userID, conversationID string, trigger model.Trigger, s *model.Suggestion) {
	if g.Audit == nil {
		return
	}
	rec := &model.SuggestionRecord{
		ID:             s.ID,
		TenantID:       tenantID,
		UserID:         userID,
		ConversationID: conversationID,
		Trigger:        trigger,
		Text:           s.Text,
		DenialReason:   s.DenialReason,
		Warnings:       s.Warnings,
		Model:          s.Model,
		ProcessingMS:   s.ProcessingTime.Milliseconds(),
		CreatedAt:      time.Now().UTC(),
	}
	g.Detacher.Go(ctx, "audit_suggestion", func(ctx context.Context) error {
		return g.Audit.Save(ctx, repository.NoTX, rec)
	})
}
