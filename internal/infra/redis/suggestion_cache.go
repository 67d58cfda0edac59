package redis

import (
	"context"
	"encoding/json"
	"time"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
)

// SuggestionCache keeps recently shown suggestions so refine requests can
// reference them by id.
type SuggestionCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewSuggestionCache(client RedisClient, ttl time.Duration) *SuggestionCache {
	return &SuggestionCache{client: client, ttl: ttl}
}

type cachedSuggestion struct {
	TenantID       string `json:"tenant_id"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

func suggestionKey(id string) string { return "suggestion:" + id }

func (c *SuggestionCache) Store(ctx context.Context, job model.GenerationJob, s *model.Suggestion) error {
	data, err := json.Marshal(cachedSuggestion{
		TenantID:       job.TenantID,
		UserID:         job.UserID,
		ConversationID: job.ConversationID,
		Text:           s.Text,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, suggestionKey(s.ID), data, c.ttl)
}

// Lookup fills Previous and ConversationID of req from the cached suggestion.
// It returns domain.ErrNotFound when the suggestion expired or belongs to someone else.
func (c *SuggestionCache) Lookup(ctx context.Context, req *model.RefineRequest) error {
	data, err := c.client.Get(ctx, suggestionKey(req.SuggestionID))
	if IsNil(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	var cs cachedSuggestion
	if err := json.Unmarshal([]byte(data), &cs); err != nil {
		return err
	}
	if cs.TenantID != req.TenantID || cs.UserID != req.UserID {
		return domain.ErrNotFound
	}
	req.Previous = cs.Text
	if req.ConversationID == "" {
		req.ConversationID = cs.ConversationID
	}
	return nil
}
