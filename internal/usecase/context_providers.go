package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
	"reply-assistant/internal/domain/ports/repository"
	"reply-assistant/internal/infra/logging"
	"reply-assistant/internal/infra/metrics"
)

// ContextProvider contributes one optional block to the prompt. Returning a
// nil block means there is nothing to add.
type ContextProvider interface {
	Name() string
	// OrgScoped providers only run for tenants that belong to an organization.
	OrgScoped() bool
	Build(ctx context.Context, in PromptInput) (*PromptBlock, error)
}

// ContextBuilder runs providers concurrently and returns their blocks in
// registration order. A failing or slow provider is logged and left out.
type ContextBuilder struct {
	providers []ContextProvider
	orgs      repository.OrganizationRepository
	timeout   time.Duration
	log       *zerolog.Logger
}

func NewContextBuilder(orgs repository.OrganizationRepository, timeout time.Duration, logger *zerolog.Logger, providers ...ContextProvider) *ContextBuilder {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &ContextBuilder{providers: providers, orgs: orgs, timeout: timeout, log: logger}
}

// Build resolves the tenant's organization into in.OrgID and collects blocks.
func (b *ContextBuilder) Build(ctx context.Context, in *PromptInput) []*PromptBlock {
	log := logging.With(ctx, b.log)
	if in.OrgID == "" && b.orgs != nil {
		orgID, err := b.orgs.OrganizationFor(ctx, repository.NoTX, in.TenantID)
		switch {
		case err == nil:
			in.OrgID = orgID
		case errors.Is(err, domain.ErrNotFound):
		default:
			log.Warn().Err(err).Msg("context: organization lookup failed, skipping org context")
		}
	}

	cctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	blocks := make([]*PromptBlock, len(b.providers))
	g, gctx := errgroup.WithContext(cctx)
	for i, p := range b.providers {
		if p.OrgScoped() && in.OrgID == "" {
			continue
		}
		input := *in
		g.Go(func() error {
			blk, err := b.run(gctx, p, input)
			if err != nil {
				metrics.IncContextProviderError(p.Name())
				log.Warn().Err(err).Str("provider", p.Name()).Msg("context provider failed, block omitted")
				return nil
			}
			blocks[i] = blk
			return nil
		})
	}
	_ = g.Wait()

	out := blocks[:0]
	for _, blk := range blocks {
		if blk != nil {
			out = append(out, blk)
		}
	}
	return out
}

// run bounds a provider by the builder deadline even when it ignores ctx.
func (b *ContextBuilder) run(ctx context.Context, p ContextProvider, in PromptInput) (*PromptBlock, error) {
	type result struct {
		blk *PromptBlock
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		blk, err := p.Build(ctx, in)
		ch <- result{blk, err}
	}()
	select {
	case r := <-ch:
		return r.blk, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DefaultContextProviders returns the providers in prompt order.
func DefaultContextProviders(notes repository.NotesRepository, orgs repository.OrganizationRepository, kb adapter.KnowledgeBaseSearch, kbLimit int, kbTimeout time.Duration, kbThreshold float64) []ContextProvider {
	return []ContextProvider{
		NewConversationNotesProvider(notes),
		NewPersonNotesProvider(notes),
		NewStyleGuideProvider(orgs),
		NewTemplateProvider(orgs),
		NewClientProvider(orgs),
		NewKnowledgeProvider(kb, kbLimit, kbTimeout, kbThreshold),
		NewDeescalationProvider(),
	}
}

const notesLimit = 5

type conversationNotesProvider struct{ notes repository.NotesRepository }

func NewConversationNotesProvider(notes repository.NotesRepository) ContextProvider {
	return &conversationNotesProvider{notes: notes}
}

func (p *conversationNotesProvider) Name() string    { return "conversation_notes" }
func (p *conversationNotesProvider) OrgScoped() bool { return false }

func (p *conversationNotesProvider) Build(ctx context.Context, in PromptInput) (*PromptBlock, error) {
	notes, err := p.notes.ConversationNotes(ctx, repository.NoTX, in.TenantID, in.UserID, in.ConversationID, notesLimit)
	if err != nil || len(notes) == 0 {
		return nil, ignoreNotFound(err)
	}
	return &PromptBlock{Name: "Saved notes about this conversation", Text: formatNotes(notes)}, nil
}

type personNotesProvider struct{ notes repository.NotesRepository }

func NewPersonNotesProvider(notes repository.NotesRepository) ContextProvider {
	return &personNotesProvider{notes: notes}
}

func (p *personNotesProvider) Name() string    { return "person_notes" }
func (p *personNotesProvider) OrgScoped() bool { return false }

func (p *personNotesProvider) Build(ctx context.Context, in PromptInput) (*PromptBlock, error) {
	if len(in.PersonIDs) == 0 {
		return nil, nil
	}
	notes, err := p.notes.PersonNotes(ctx, repository.NoTX, in.TenantID, in.UserID, in.PersonIDs, notesLimit)
	if err != nil || len(notes) == 0 {
		return nil, ignoreNotFound(err)
	}
	return &PromptBlock{Name: "Notes about people in this conversation", Text: formatNotes(notes)}, nil
}

func formatNotes(notes []model.Note) string {
	var b strings.Builder
	for _, n := range notes {
		if n.Subject != "" {
			fmt.Fprintf(&b, "- %s: %s\n", n.Subject, n.Body)
		} else {
			fmt.Fprintf(&b, "- %s\n", n.Body)
		}
	}
	return b.String()
}

type styleGuideProvider struct{ orgs repository.OrganizationRepository }

func NewStyleGuideProvider(orgs repository.OrganizationRepository) ContextProvider {
	return &styleGuideProvider{orgs: orgs}
}

func (p *styleGuideProvider) Name() string    { return "org_style_guide" }
func (p *styleGuideProvider) OrgScoped() bool { return true }

func (p *styleGuideProvider) Build(ctx context.Context, in PromptInput) (*PromptBlock, error) {
	guide, err := p.orgs.StyleGuide(ctx, repository.NoTX, in.OrgID)
	if err != nil || strings.TrimSpace(guide) == "" {
		return nil, ignoreNotFound(err)
	}
	return &PromptBlock{Name: "Organization writing guidelines", Text: guide}, nil
}

const templateLimit = 3

type templateProvider struct{ orgs repository.OrganizationRepository }

func NewTemplateProvider(orgs repository.OrganizationRepository) ContextProvider {
	return &templateProvider{orgs: orgs}
}

func (p *templateProvider) Name() string    { return "response_templates" }
func (p *templateProvider) OrgScoped() bool { return true }

func (p *templateProvider) Build(ctx context.Context, in PromptInput) (*PromptBlock, error) {
	if strings.TrimSpace(in.TriggerText) == "" {
		return nil, nil
	}
	tpls, err := p.orgs.MatchTemplates(ctx, repository.NoTX, in.OrgID, in.TriggerText, templateLimit)
	if err != nil || len(tpls) == 0 {
		return nil, ignoreNotFound(err)
	}
	var b strings.Builder
	b.WriteString("Approved answers that may fit. Adapt rather than copy.\n")
	for _, t := range tpls {
		fmt.Fprintf(&b, "- %s: %s\n", t.Title, t.Body)
	}
	return &PromptBlock{Name: "Response templates", Text: b.String()}, nil
}

type clientProvider struct{ orgs repository.OrganizationRepository }

func NewClientProvider(orgs repository.OrganizationRepository) ContextProvider {
	return &clientProvider{orgs: orgs}
}

func (p *clientProvider) Name() string    { return "client_context" }
func (p *clientProvider) OrgScoped() bool { return true }

func (p *clientProvider) Build(ctx context.Context, in PromptInput) (*PromptBlock, error) {
	c, err := p.orgs.ClientFor(ctx, repository.NoTX, in.OrgID, in.ConversationID)
	if err != nil || c == nil {
		return nil, ignoreNotFound(err)
	}
	var parts []string
	add := func(label, v string) {
		if v != "" {
			parts = append(parts, label+": "+v)
		}
	}
	add("Name", c.Name)
	add("Company", c.Company)
	add("Tier", c.Tier)
	add("Relationship", c.Relationship)
	add("Notes", c.Notes)
	if len(parts) == 0 {
		return nil, nil
	}
	return &PromptBlock{Name: "About the client", Text: strings.Join(parts, "\n")}, nil
}

type knowledgeProvider struct {
	kb        adapter.KnowledgeBaseSearch
	limit     int
	timeout   time.Duration
	threshold float64
}

func NewKnowledgeProvider(kb adapter.KnowledgeBaseSearch, limit int, timeout time.Duration, threshold float64) ContextProvider {
	if limit <= 0 {
		limit = 3
	}
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	if threshold <= 0 {
		threshold = 0.7
	}
	return &knowledgeProvider{kb: kb, limit: limit, timeout: timeout, threshold: threshold}
}

func (p *knowledgeProvider) Name() string    { return "knowledge_base" }
func (p *knowledgeProvider) OrgScoped() bool { return false }

func (p *knowledgeProvider) Build(ctx context.Context, in PromptInput) (*PromptBlock, error) {
	if p.kb == nil || strings.TrimSpace(in.TriggerText) == "" {
		return nil, nil
	}
	hits, err := p.kb.Query(ctx, in.TenantID, in.TriggerText, p.limit, p.timeout)
	if err != nil {
		return nil, ignoreNotFound(err)
	}
	var b strings.Builder
	for _, h := range hits {
		if h.Score < p.threshold {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", h.Title, h.Text)
	}
	if b.Len() == 0 {
		return nil, nil
	}
	return &PromptBlock{Name: "Knowledge base", Text: b.String()}, nil
}

type deescalationProvider struct{}

func NewDeescalationProvider() ContextProvider { return deescalationProvider{} }

func (deescalationProvider) Name() string    { return "deescalation" }
func (deescalationProvider) OrgScoped() bool { return false }

func (deescalationProvider) Build(_ context.Context, in PromptInput) (*PromptBlock, error) {
	if in.Sentiment.Risk != model.RiskHigh {
		return nil, nil
	}
	return &PromptBlock{
		Name: "Tone",
		Text: "The other person is upset. Acknowledge their frustration first, stay calm and specific, avoid blame and defensiveness, and offer a concrete next step.",
	}, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
