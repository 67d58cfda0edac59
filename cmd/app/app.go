package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"reply-assistant/internal/config"
	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
	"reply-assistant/internal/domain/ports/repository"
	aiAdapters "reply-assistant/internal/infra/adapters/ai"
	tele "reply-assistant/internal/infra/adapters/telegram"
	"reply-assistant/internal/infra/adapters/webhook"
	pg "reply-assistant/internal/infra/db/postgres"
	"reply-assistant/internal/infra/i18n"
	"reply-assistant/internal/infra/logging"
	red "reply-assistant/internal/infra/redis"
	"reply-assistant/internal/infra/security"
	"reply-assistant/internal/infra/worker"
	"reply-assistant/internal/usecase"
)

const (
	devEncryptionKey = "0123456789abcdef0123456789abcdef"
	devWebhookSecret = "dev-webhook-secret"
)

// base holds the connections every command needs.
type base struct {
	cfg   *config.Config
	log   *zerolog.Logger
	db    *pgxpool.Pool
	redis *red.Client
	msgs  *i18n.Translator
}

func openBase(ctx context.Context) (*base, error) {
	cfg, err := config.Load(cfgPath, devMode)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	msgs, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Messaging.Language)
	if err != nil {
		logger.Warn().Err(err).Str("language", cfg.Messaging.Language).Msg("unknown language, using the default texts")
		msgs = i18n.Default()
	}

	db, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	rc, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	return &base{cfg: cfg, log: logger, db: db, redis: rc, msgs: msgs}, nil
}

func (b *base) Close() {
	_ = b.redis.Close()
	b.db.Close()
}

func (b *base) encryption() (*security.EncryptionService, error) {
	key := b.cfg.Security.EncryptionKey
	if key == "" && b.cfg.Runtime.Dev {
		b.log.Warn().Msg("security.encryption_key not set; using the insecure dev key")
		key = devEncryptionKey
	}
	return security.NewEncryptionService(key)
}

func (b *base) pricing() usecase.PricingUseCase {
	repo := pg.NewModelPricingRepoCacheDecorator(pg.NewModelPricingRepo(b.db), b.redis, logging.Component(b.log, "pricing_cache"))
	return usecase.NewPricingUseCase(repo, logging.Component(b.log, "pricing"))
}

// app is the fully wired suggestion pipeline.
type app struct {
	*base
	pool     *worker.Pool
	jobs     repository.JobRepository
	detacher *usecase.Detacher
	gen      *usecase.Generator
	cache    *red.SuggestionCache
}

func buildApp(ctx context.Context, b *base) (*app, error) {
	cfg := b.cfg
	log := b.log
	gcfg := cfg.Generation

	enc, err := b.encryption()
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}
	provider, err := buildProvider(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	messaging := buildMessaging(cfg, log)

	secret := cfg.Security.WebhookSecret
	if secret == "" && cfg.Runtime.Dev {
		secret = devWebhookSecret
	}
	poster, err := webhook.NewPoster(secret, cfg.HTTP.WebhookTimeout)
	if err != nil {
		return nil, fmt.Errorf("webhook poster: %w", err)
	}

	// ---- Repositories ----
	jobRepo := pg.NewJobRepo(b.db)
	usageRepo := pg.NewUsageRepo(b.db)
	auditRepo := pg.NewAuditRepo(b.db)
	contextRepo := pg.NewContextRepo(b.db)
	deliveryRepo := pg.NewDeliveryRepo(b.db)
	knowledgeRepo := pg.NewKnowledgeRepo(b.db, gcfg.KBThreshold)
	maintenanceRepo := pg.NewMaintenanceRepo(b.db)
	guardrailRepo := pg.NewGuardrailRepo(b.db)
	policies := pg.NewGuardrailRepoCacheDecorator(guardrailRepo, b.redis, cfg.Redis.TTL)
	prices := pg.NewModelPricingRepoCacheDecorator(pg.NewModelPricingRepo(b.db), b.redis, logging.Component(log, "pricing_cache"))

	// ---- Use cases ----
	detacher := usecase.NewDetacher(log, gcfg.DetachedTimeout)
	sanitizer := usecase.NewSanitizer(gcfg.MaxInputChars, gcfg.MaxOutputChars)
	classifier := usecase.NewClassifier()
	tokens := usecase.NewTokenCounter(cfg.AI.TokenEncoding, log)
	contexts := usecase.NewContextBuilder(contextRepo, gcfg.ContextTimeout, logging.Component(log, "context"),
		usecase.DefaultContextProviders(contextRepo, contextRepo, knowledgeRepo, gcfg.KBLimit, gcfg.KBTimeout, gcfg.KBThreshold)...)

	gen := usecase.NewGenerator(usecase.GeneratorDeps{
		Usage:      usecase.NewUsageGate(usageRepo, logging.Component(log, "usage_gate")),
		Policies:   policies,
		Enforcer:   usecase.NewGuardrailEnforcer(gcfg.MaxAvoidTopics),
		Violations: guardrailRepo,
		Provider:   provider,
		Assembler:  usecase.NewPromptAssembler(sanitizer, tokens, gcfg.BlockTokenBudget, logging.Component(log, "prompt")),
		Contexts:   contexts,
		Styles:     contextRepo,
		Pricing:    prices,
		Costs:      auditRepo,
		Audit:      auditRepo,
		Enrichment: usecase.NewEnrichmentPipeline(classifier, auditRepo, detacher),
		Classifier: classifier,
		Sanitizer:  sanitizer,
		Detacher:   detacher,
	}, usecase.GeneratorConfig{
		Model:           cfg.AI.DefaultModel,
		MaxTokens:       gcfg.MaxTokens,
		Temperature:     gcfg.Temperature,
		ProviderTimeout: gcfg.ProviderTimeout,
	}, logging.Component(log, "generator"))

	clients := usecase.NewClientResolver(deliveryRepo, enc, messaging)
	router := usecase.NewDeliveryRouter(red.NewDeliveryGuard(b.redis, 24*time.Hour), deliveryRepo, clients, poster, b.msgs, logging.Component(log, "delivery"))
	notifier := usecase.NewNotifier(clients, b.msgs, logging.Component(log, "notifier"))
	cache := red.NewSuggestionCache(b.redis, cfg.Redis.TTL)
	genJobs := usecase.NewGenerationJobHandler(gen, router, notifier, cache, logging.Component(log, "generation_job"))

	batch := usecase.NewBatchJobs(usecase.BatchJobsDeps{
		Usage:       usageRepo,
		Escalations: auditRepo,
		Index:       knowledgeRepo,
		Retention:   maintenanceRepo,
		Trends:      maintenanceRepo,
		Tx:          pg.NewTxManager(b.db),
		Webhooks:    poster,
		Classifier:  classifier,
	}, logging.Component(log, "batch"))

	// ---- Worker pool ----
	pool := worker.NewPool(jobRepo, log,
		worker.WithLimiter(red.NewRateLimiter(b.redis)),
		worker.WithPermanentErrors(domain.IsTerminal),
	)
	q := func(name model.QueueName) worker.QueueConfig { return queueConfig(cfg.Queues[string(name)]) }

	worker.Register(pool, q(model.QueueGeneration), func(ctx context.Context, meta worker.JobMeta, p model.GenerationJob) (model.JobOutcome, error) {
		return genJobs.Handle(ctx, meta.ID, p)
	})
	worker.Register(pool, q(model.QueueWriteBack), batchHandler(batch.WriteBack))
	worker.Register(pool, q(model.QueueReport), batchHandler(batch.Report))
	worker.Register(pool, q(model.QueueBatchScan), batchHandler(batch.BatchScan))
	worker.Register(pool, q(model.QueueIndex), batchHandler(batch.Index))
	worker.Register(pool, q(model.QueueRetention), batchHandler(batch.Retention))
	worker.Register(pool, q(model.QueueAggregation), batchHandler(batch.Aggregation))

	pool.OnFailed(func(ev worker.FailedEvent) {
		if ev.WillRetry {
			return
		}
		log.Error().Err(ev.Err).Str("job_id", ev.JobID).Str("queue", string(ev.Queue)).Int("attempt", ev.Attempt).Msg("job failed permanently")
	})

	return &app{base: b, pool: pool, jobs: jobRepo, detacher: detacher, gen: gen, cache: cache}, nil
}

// batchHandler adapts a use case method to a worker handler.
func batchHandler[P model.Payload, R any](fn func(context.Context, P) (R, error)) worker.Handler[P, R] {
	return func(ctx context.Context, _ worker.JobMeta, p P) (R, error) { return fn(ctx, p) }
}

func queueConfig(c config.QueueConfig) worker.QueueConfig {
	return worker.QueueConfig{
		Concurrency:  c.Concurrency,
		RateLimit:    worker.RateLimit{Max: c.RateLimit.Max, Duration: c.RateLimit.Duration},
		MaxAttempts:  c.MaxAttempts,
		Backoff:      worker.Backoff{Base: c.Backoff.Base, Max: c.Backoff.Max},
		PollInterval: c.PollInterval,
	}
}

func buildProvider(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (adapter.LanguageModelProvider, error) {
	ai := cfg.AI
	var p adapter.LanguageModelProvider
	var err error
	switch ai.Provider {
	case "noop":
		if !cfg.Runtime.Dev {
			return nil, fmt.Errorf("ai.provider noop is only allowed with --dev")
		}
		p = aiAdapters.NewNoopAIAdapter(logging.Component(log, "noop_ai"))
	case "openai":
		p, err = aiAdapters.NewOpenAIAdapter(ai.OpenAIKey, ai.OpenAIBaseURL, ai.DefaultModel)
	case "gemini":
		p, err = aiAdapters.NewGeminiAdapter(ctx, ai.GeminiKey, ai.GeminiURL, ai.DefaultModel)
	case "bedrock":
		p, err = aiAdapters.NewBedrockAdapter(ctx, ai.BedrockRegion, ai.DefaultModel)
	case "multi":
		p, err = buildMulti(ctx, ai)
	default:
		return nil, fmt.Errorf("unknown ai.provider %q", ai.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s provider: %w", ai.Provider, err)
	}
	log.Info().Str("provider", p.Name()).Str("model", ai.DefaultModel).Int("concurrency", ai.ConcurrentLimit).Msg("ai provider ready")
	return aiAdapters.NewLimitedAI(p, ai.ConcurrentLimit), nil
}

// buildMulti routes by model name across every provider that has credentials.
func buildMulti(ctx context.Context, ai config.AIConfig) (adapter.LanguageModelProvider, error) {
	byProvider := map[string]adapter.LanguageModelProvider{}
	def := ""
	if ai.OpenAIKey != "" {
		p, err := aiAdapters.NewOpenAIAdapter(ai.OpenAIKey, ai.OpenAIBaseURL, ai.DefaultModel)
		if err != nil {
			return nil, err
		}
		byProvider["openai"], def = p, "openai"
	}
	if ai.GeminiKey != "" {
		p, err := aiAdapters.NewGeminiAdapter(ctx, ai.GeminiKey, ai.GeminiURL, ai.DefaultModel)
		if err != nil {
			return nil, err
		}
		byProvider["gemini"] = p
		if def == "" {
			def = "gemini"
		}
	}
	if ai.BedrockRegion != "" {
		p, err := aiAdapters.NewBedrockAdapter(ctx, ai.BedrockRegion, ai.DefaultModel)
		if err != nil {
			return nil, err
		}
		byProvider["bedrock"] = p
		if def == "" {
			def = "bedrock"
		}
	}
	if len(byProvider) == 0 {
		return nil, aiAdapters.ErrNoProvider
	}
	return aiAdapters.NewMultiAIAdapter(def, byProvider, nil), nil
}

func buildMessaging(cfg *config.Config, log *zerolog.Logger) adapter.MessagingClientFactory {
	if cfg.Messaging.Platform == "noop" {
		return tele.NewNoopMessenger(logging.Component(log, "noop_messenger"))
	}
	return tele.NewMessengerFactory(cfg.Messaging.APIEndpoint)
}
