//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
	"reply-assistant/internal/domain/ports/repository"
	"reply-assistant/internal/infra/i18n"
	"reply-assistant/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// -----------------------------
// Usage
// -----------------------------

type mockUsageRepo struct {
	mu         sync.Mutex
	count      int64
	limit      int64
	overage    bool
	noPlan     bool
	checkErr   error
	increments int
	summary    *model.UsageSummary
}

func (m *mockUsageRepo) Check(_ context.Context, _ repository.Tx, tenantID, userID, period string) (*model.UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	if m.noPlan {
		return nil, domain.ErrNotFound
	}
	return &model.UsageRecord{TenantID: tenantID, UserID: userID, Period: period, Count: m.count, Limit: m.limit, AllowOverage: m.overage}, nil
}

func (m *mockUsageRepo) Increment(context.Context, repository.Tx, string, string, string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.increments++
	m.count++
	return m.count, nil
}

func (m *mockUsageRepo) MonthlySummary(_ context.Context, _ repository.Tx, tenantID, period string, _ int) (*model.UsageSummary, error) {
	if m.summary == nil {
		return nil, domain.ErrNotFound
	}
	s := *m.summary
	s.TenantID, s.Period = tenantID, period
	return &s, nil
}

func (m *mockUsageRepo) Increments() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.increments
}

// -----------------------------
// Provider
// -----------------------------

// mockProvider replays replies in order; the last one repeats.
type mockProvider struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []adapter.CompletionRequest
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Complete(_ context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return adapter.Completion{}, m.err
	}
	i := len(m.requests) - 1
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	text := ""
	if i >= 0 {
		text = m.replies[i]
	}
	return adapter.Completion{Text: text, Usage: model.TokenUsage{InputTokens: 100, OutputTokens: 20}, Provider: "mock"}, nil
}

func (m *mockProvider) Stream(ctx context.Context, req adapter.CompletionRequest, onDelta func(string) error) (model.TokenUsage, error) {
	c, err := m.Complete(ctx, req)
	if err != nil {
		return model.TokenUsage{}, err
	}
	return c.Usage, onDelta(c.Text)
}

func (m *mockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockProvider) Request(i int) adapter.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

// -----------------------------
// Policy, audit and enrichment stores
// -----------------------------

type mockGuardrailRepo struct {
	cfg *model.GuardrailConfig
	err error
}

func (m *mockGuardrailRepo) Get(context.Context, repository.Tx, string) (*model.GuardrailConfig, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.cfg == nil {
		return nil, domain.ErrNotFound
	}
	return m.cfg, nil
}

type mockViolationRepo struct {
	mu      sync.Mutex
	records []model.ViolationRecord
}

func (m *mockViolationRepo) SaveAll(_ context.Context, _ repository.Tx, recs []model.ViolationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, recs...)
	return nil
}

func (m *mockViolationRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type mockCostRepo struct {
	mu      sync.Mutex
	entries []model.CostEntry
}

func (m *mockCostRepo) Record(_ context.Context, _ repository.Tx, e *model.CostEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

type mockSuggestionRepo struct {
	mu      sync.Mutex
	records []model.SuggestionRecord
}

func (m *mockSuggestionRepo) Save(_ context.Context, _ repository.Tx, rec *model.SuggestionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return nil
}

type mockEnrichmentRepo struct {
	mu         sync.Mutex
	err        error
	delay      time.Duration
	topics     []model.TopicRecord
	sentiments []model.SentimentRecord
}

func (m *mockEnrichmentRepo) SaveTopics(ctx context.Context, _ repository.Tx, t []model.TopicRecord) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, t...)
	return m.err
}

func (m *mockEnrichmentRepo) SaveSentiment(ctx context.Context, _ repository.Tx, s *model.SentimentRecord) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentiments = append(m.sentiments, *s)
	return m.err
}

func (m *mockEnrichmentRepo) wait(ctx context.Context) error {
	if m.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(m.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type mockPricingRepo struct {
	mu   sync.Mutex
	rows map[string]*model.ModelPricing
}

func newMockPricingRepo() *mockPricingRepo {
	return &mockPricingRepo{rows: map[string]*model.ModelPricing{}}
}

func (m *mockPricingRepo) GetByModelName(_ context.Context, _ repository.Tx, name string) (*model.ModelPricing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[name]
	if !ok || !p.Active {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPricingRepo) Save(_ context.Context, _ repository.Tx, p *model.ModelPricing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.rows[p.ModelName] = &cp
	return nil
}

func (m *mockPricingRepo) ListActive(context.Context, repository.Tx) ([]*model.ModelPricing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ModelPricing
	for _, p := range m.rows {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// -----------------------------
// Context sources
// -----------------------------

type mockStyleRepo struct{ profile *model.StyleProfile }

func (m *mockStyleRepo) Get(context.Context, repository.Tx, string, string) (*model.StyleProfile, error) {
	if m.profile == nil {
		return nil, domain.ErrNotFound
	}
	return m.profile, nil
}

type mockNotesRepo struct {
	conversation []model.Note
	person       []model.Note
	err          error
}

func (m *mockNotesRepo) ConversationNotes(context.Context, repository.Tx, string, string, string, int) ([]model.Note, error) {
	return m.conversation, m.err
}

func (m *mockNotesRepo) PersonNotes(context.Context, repository.Tx, string, string, []string, int) ([]model.Note, error) {
	return m.person, m.err
}

type mockOrgRepo struct {
	orgID     string
	orgErr    error
	guide     string
	templates []model.ResponseTemplate
	client    *model.ClientProfile
	calls     sync.Map // method -> struct{}
}

func (m *mockOrgRepo) OrganizationFor(context.Context, repository.Tx, string) (string, error) {
	if m.orgErr != nil {
		return "", m.orgErr
	}
	if m.orgID == "" {
		return "", domain.ErrNotFound
	}
	return m.orgID, nil
}

func (m *mockOrgRepo) StyleGuide(context.Context, repository.Tx, string) (string, error) {
	m.calls.Store("StyleGuide", struct{}{})
	return m.guide, nil
}

func (m *mockOrgRepo) MatchTemplates(context.Context, repository.Tx, string, string, int) ([]model.ResponseTemplate, error) {
	m.calls.Store("MatchTemplates", struct{}{})
	return m.templates, nil
}

func (m *mockOrgRepo) ClientFor(context.Context, repository.Tx, string, string) (*model.ClientProfile, error) {
	m.calls.Store("ClientFor", struct{}{})
	if m.client == nil {
		return nil, domain.ErrNotFound
	}
	return m.client, nil
}

func (m *mockOrgRepo) called(method string) bool {
	_, ok := m.calls.Load(method)
	return ok
}

type mockKB struct {
	hits  []model.KnowledgeExcerpt
	err   error
	block bool
}

func (m *mockKB) Query(ctx context.Context, _, _ string, _ int, _ time.Duration) ([]model.KnowledgeExcerpt, error) {
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.hits, m.err
}

// -----------------------------
// Delivery
// -----------------------------

type mockGuard struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
	calls   int
}

func newMockGuard() *mockGuard { return &mockGuard{claimed: map[string]bool{}} }

func (m *mockGuard) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	if m.claimed[key] {
		return false, nil
	}
	m.claimed[key] = true
	return true, nil
}

func (m *mockGuard) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockAutoRespondRepo struct {
	enabled bool
	err     error
	mu      sync.Mutex
	logged  []model.AutoResponseEntry
}

func (m *mockAutoRespondRepo) IsEnabled(context.Context, repository.Tx, string, string, string) (bool, error) {
	return m.enabled, m.err
}

func (m *mockAutoRespondRepo) LogAutoResponse(_ context.Context, _ repository.Tx, e *model.AutoResponseEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logged = append(m.logged, *e)
	return nil
}

type mockCredentialRepo struct {
	missing bool
}

func (m *mockCredentialRepo) Resolve(_ context.Context, _ repository.Tx, tenantID string) (*model.DeliveryCredential, error) {
	if m.missing {
		return nil, domain.ErrNotFound
	}
	return &model.DeliveryCredential{TenantID: tenantID, EncryptedToken: "sealed-token"}, nil
}

func (m *mockCredentialRepo) Save(context.Context, repository.Tx, *model.DeliveryCredential) error {
	return nil
}

// plainDecrypter strips the "sealed-" prefix the credential mock adds.
type plainDecrypter struct{}

func (plainDecrypter) Decrypt(_, ciphertext string) (string, error) {
	if len(ciphertext) < 7 || ciphertext[:7] != "sealed-" {
		return "", errors.New("bad ciphertext")
	}
	return ciphertext[7:], nil
}

type postedMessage struct {
	ConversationID string
	Text           string
	ThreadID       string
}

type postedNotice struct {
	ConversationID string
	UserID         string
	Notice         adapter.Notice
}

type mockMessenger struct {
	mu         sync.Mutex
	postErr    error
	noticeErr  error
	messages   []postedMessage
	notices    []postedNotice
	nextMsgID  string
	tokensSeen []string
}

func (m *mockMessenger) ForToken(_ context.Context, token string) (adapter.MessagingClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokensSeen = append(m.tokensSeen, token)
	return m, nil
}

func (m *mockMessenger) PostMessage(_ context.Context, conversationID, text, threadID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return "", m.postErr
	}
	m.messages = append(m.messages, postedMessage{conversationID, text, threadID})
	if m.nextMsgID == "" {
		return "1001", nil
	}
	return m.nextMsgID, nil
}

func (m *mockMessenger) PostEphemeral(_ context.Context, conversationID, userID string, n adapter.Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.noticeErr != nil {
		return m.noticeErr
	}
	m.notices = append(m.notices, postedNotice{conversationID, userID, n})
	return nil
}

func (m *mockMessenger) Notices() []postedNotice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]postedNotice(nil), m.notices...)
}

func (m *mockMessenger) Messages() []postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]postedMessage(nil), m.messages...)
}

type webhookCall struct {
	URL     string
	Payload any
}

type mockWebhook struct {
	mu    sync.Mutex
	err   error
	calls []webhookCall
}

func (m *mockWebhook) Post(_ context.Context, url string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, webhookCall{url, payload})
	return m.err
}

func (m *mockWebhook) Calls() []webhookCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]webhookCall(nil), m.calls...)
}

// MockTxManager hands fn a marker Tx and records whether it committed.
type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	Committed  int
	RolledBack int
}

type mockTx struct{}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	if err := fn(ctx, mockTx{}); err != nil {
		m.RolledBack++
		return err
	}
	m.Committed++
	return nil
}

type mockSuggestionStore struct {
	mu     sync.Mutex
	stored []string
}

func (m *mockSuggestionStore) Store(_ context.Context, _ model.GenerationJob, s *model.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, s.ID)
	return nil
}

// -----------------------------
// Pipeline fixture
// -----------------------------

type pipeline struct {
	usage      *mockUsageRepo
	provider   *mockProvider
	policies   *mockGuardrailRepo
	violations *mockViolationRepo
	costs      *mockCostRepo
	audit      *mockSuggestionRepo
	enrichment *mockEnrichmentRepo
	pricing    *mockPricingRepo
	orgs       *mockOrgRepo
	notes      *mockNotesRepo
	kb         *mockKB
	guard      *mockGuard
	prefs      *mockAutoRespondRepo
	creds      *mockCredentialRepo
	messenger  *mockMessenger
	webhook    *mockWebhook
	store      *mockSuggestionStore
	detacher   *usecase.Detacher
	generator  *usecase.Generator
	router     *usecase.DeliveryRouter
	handler    *usecase.GenerationJobHandler
}

func newPipeline(replies ...string) *pipeline {
	log := newTestLogger()
	p := &pipeline{
		usage:      &mockUsageRepo{limit: 100},
		provider:   &mockProvider{replies: replies},
		policies:   &mockGuardrailRepo{},
		violations: &mockViolationRepo{},
		costs:      &mockCostRepo{},
		audit:      &mockSuggestionRepo{},
		enrichment: &mockEnrichmentRepo{},
		pricing:    newMockPricingRepo(),
		orgs:       &mockOrgRepo{},
		notes:      &mockNotesRepo{},
		kb:         &mockKB{},
		guard:      newMockGuard(),
		prefs:      &mockAutoRespondRepo{},
		creds:      &mockCredentialRepo{},
		messenger:  &mockMessenger{},
		webhook:    &mockWebhook{},
		store:      &mockSuggestionStore{},
		detacher:   usecase.NewDetacher(log, time.Second),
	}
	_ = p.pricing.Save(context.Background(), repository.NoTX, model.NewModelPricing("test-model", 2, 5, true))

	san := usecase.NewSanitizer(4000, 2000)
	classifier := usecase.NewClassifier()
	contexts := usecase.NewContextBuilder(p.orgs, 200*time.Millisecond, log,
		usecase.DefaultContextProviders(p.notes, p.orgs, p.kb, 3, 100*time.Millisecond, 0.7)...)

	p.generator = usecase.NewGenerator(usecase.GeneratorDeps{
		Usage:      usecase.NewUsageGate(p.usage, log),
		Policies:   p.policies,
		Enforcer:   usecase.NewGuardrailEnforcer(5),
		Violations: p.violations,
		Provider:   p.provider,
		Assembler:  usecase.NewPromptAssembler(san, usecase.NewEstimateCounter(), 1500, log),
		Contexts:   contexts,
		Styles:     &mockStyleRepo{},
		Pricing:    p.pricing,
		Costs:      p.costs,
		Audit:      p.audit,
		Enrichment: usecase.NewEnrichmentPipeline(classifier, p.enrichment, p.detacher),
		Classifier: classifier,
		Sanitizer:  san,
		Detacher:   p.detacher,
	}, usecase.GeneratorConfig{Model: "test-model", MaxTokens: 200, Temperature: 0.3, ProviderTimeout: time.Second}, log)

	clients := usecase.NewClientResolver(p.creds, plainDecrypter{}, p.messenger)
	msgs := i18n.Default()
	p.router = usecase.NewDeliveryRouter(p.guard, p.prefs, clients, p.webhook, msgs, log)
	p.handler = usecase.NewGenerationJobHandler(p.generator, p.router, usecase.NewNotifier(clients, msgs, log), p.store, log)
	return p
}

func testJob() model.GenerationJob {
	return model.GenerationJob{
		TenantID:       "tenant-1",
		UserID:         "user-1",
		ConversationID: "conv-1",
		Trigger:        model.TriggerMention,
		TriggerText:    "Can you send me the invoice for last month?",
		ContextMessages: []model.ContextMessage{
			{AuthorID: "client", Text: "Hi, quick question about billing."},
		},
	}
}
