package usecase

import (
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
)

// TokenCounter measures and trims text in model tokens.
type TokenCounter interface {
	Count(text string) int
	// Truncate returns the longest prefix of text that fits in max tokens.
	Truncate(text string, max int) string
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the named BPE encoding. When the encoding cannot be
// loaded (offline hosts) it falls back to a four-characters-per-token estimate.
func NewTokenCounter(encoding string, logger *zerolog.Logger) TokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		if logger != nil {
			logger.Warn().Err(err).Str("encoding", encoding).Msg("tokenizer unavailable, using estimate")
		}
		return estimateCounter{}
	}
	return &tiktokenCounter{enc: enc}
}

func (c *tiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

func (c *tiktokenCounter) Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	toks := c.enc.Encode(text, nil, nil)
	if len(toks) <= max {
		return text
	}
	return strings.ToValidUTF8(c.enc.Decode(toks[:max]), "")
}

// NewEstimateCounter returns the character-based estimate without loading any encoding.
func NewEstimateCounter() TokenCounter { return estimateCounter{} }

type estimateCounter struct{}

const charsPerToken = 4

func (estimateCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

func (estimateCounter) Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	return truncateRunes(text, max*charsPerToken)
}
