package usecase

import (
	"sort"
	"strings"
	"unicode"

	"reply-assistant/internal/domain/model"
)

var topicLexicon = map[string][]string{
	"billing":      {"invoice", "billing", "charge", "charged", "refund", "payment", "receipt", "overcharged"},
	"pricing":      {"price", "pricing", "quote", "discount", "cost", "plan", "upgrade"},
	"shipping":     {"shipping", "delivery", "tracking", "shipment", "courier", "package"},
	"technical":    {"error", "bug", "crash", "broken", "outage", "login", "password", "integration", "api"},
	"account":      {"account", "profile", "username", "email", "settings", "permissions"},
	"cancellation": {"cancel", "cancellation", "unsubscribe", "terminate", "close"},
	"scheduling":   {"meeting", "schedule", "reschedule", "calendar", "call", "tomorrow", "availability"},
	"feedback":     {"feedback", "suggestion", "review", "feature", "request"},
}

var (
	positiveWords = wordSet("thanks", "thank", "great", "awesome", "love", "perfect", "appreciate", "excellent", "happy", "helpful", "good", "glad", "amazing")
	negativeWords = wordSet("bad", "terrible", "awful", "angry", "annoyed", "frustrated", "disappointed", "worst", "hate", "useless", "broken", "unhappy", "upset", "ridiculous", "slow", "poor", "wrong")
	// words that on their own mean the conversation may need a human
	escalationWords = wordSet("unacceptable", "lawyer", "lawsuit", "legal", "furious", "scam", "fraud", "complaint", "escalate", "manager", "outraged")
	negators        = wordSet("not", "no", "never", "don't", "dont", "isn't", "isnt", "wasn't", "wasnt")
)

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Classifier labels message text with topics and a sentiment using fixed lexicons.
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

// Topics returns the sorted set of topics mentioned in text.
func (c *Classifier) Topics(text string) []string {
	words := wordSet(tokenize(text)...)
	var out []string
	for topic, kws := range topicLexicon {
		for _, kw := range kws {
			if _, ok := words[kw]; ok {
				out = append(out, topic)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Sentiment scores text in [-1, 1] and grades its escalation risk.
func (c *Classifier) Sentiment(text string) model.SentimentResult {
	words := tokenize(text)
	var pos, neg, esc int
	for i, w := range words {
		negated := i > 0 && isNegator(words[i-1])
		if _, ok := positiveWords[w]; ok {
			if negated {
				neg++
			} else {
				pos++
			}
		}
		if _, ok := negativeWords[w]; ok {
			if negated {
				pos++
			} else {
				neg++
			}
		}
		if _, ok := escalationWords[w]; ok {
			esc++
			neg++
		}
	}

	res := model.SentimentResult{Label: "neutral", Risk: model.RiskLow}
	if total := pos + neg; total > 0 {
		res.Score = float64(pos-neg) / float64(total)
	}
	switch {
	case res.Score > 0.2:
		res.Label = "positive"
	case res.Score < -0.2:
		res.Label = "negative"
	}
	switch {
	case esc > 0 || (res.Score <= -0.5 && neg >= 2):
		res.Risk = model.RiskHigh
	case res.Score < -0.2:
		res.Risk = model.RiskMedium
	}
	return res
}

func isNegator(w string) bool {
	_, ok := negators[w]
	return ok
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
