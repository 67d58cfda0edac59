package usecase

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"reply-assistant/internal/domain/model"
)

// maxAvoidTopics bounds the avoid-topics instruction of a regeneration round.
const maxAvoidTopics = 5

// GuardrailEnforcer scans generated text against a tenant's content policy.
type GuardrailEnforcer struct {
	maxAvoidTopics int
	patterns       sync.Map // keyword -> *regexp.Regexp
}

func NewGuardrailEnforcer(limit int) *GuardrailEnforcer {
	if limit <= 0 || limit > maxAvoidTopics {
		limit = maxAvoidTopics
	}
	return &GuardrailEnforcer{maxAvoidTopics: limit}
}

// Check reports every violation in text.
func (g *GuardrailEnforcer) Check(text string, cfg *model.GuardrailConfig) model.CheckResult {
	return g.scan(text, cfg, false)
}

// Enforce turns a scan into a decision according to cfg.TriggerMode.
func (g *GuardrailEnforcer) Enforce(text string, cfg *model.GuardrailConfig) model.GuardrailDecision {
	if cfg.Empty() {
		return model.GuardrailDecision{Kind: model.DecisionClean, Text: text}
	}
	mode := model.ParseTriggerMode(string(cfg.TriggerMode))
	res := g.scan(text, cfg, mode == model.TriggerHardBlock)
	if !res.Violated {
		return model.GuardrailDecision{Kind: model.DecisionClean, Text: text}
	}

	switch mode {
	case model.TriggerHardBlock:
		return model.GuardrailDecision{Kind: model.DecisionBlocked, Violations: res.Violations}
	case model.TriggerRegenerate:
		return model.GuardrailDecision{
			Kind:        model.DecisionRegenerate,
			AvoidTopics: g.avoidTopics(res.Violations),
			Violations:  res.Violations,
		}
	default:
		warnings := make([]string, 0, len(res.Violations))
		for _, v := range res.Violations {
			warnings = append(warnings, warningFor(v))
		}
		return model.GuardrailDecision{Kind: model.DecisionWarned, Text: text, Warnings: warnings, Violations: res.Violations}
	}
}

func (g *GuardrailEnforcer) scan(text string, cfg *model.GuardrailConfig, first bool) model.CheckResult {
	var res model.CheckResult
	if cfg.Empty() || strings.TrimSpace(text) == "" {
		return res
	}
	add := func(v model.GuardrailViolation) bool {
		res.Violated = true
		res.Violations = append(res.Violations, v)
		return first
	}

	for _, kw := range cfg.Keywords() {
		if m := g.match(text, kw); m != "" {
			if add(model.GuardrailViolation{Type: model.ViolationCustomKeyword, Rule: kw, MatchedText: m}) {
				return res
			}
		}
	}
	for _, cat := range cfg.EnabledCategories {
		for _, kw := range guardrailCategories[strings.ToLower(strings.TrimSpace(cat))] {
			if m := g.match(text, kw); m != "" {
				if add(model.GuardrailViolation{Type: model.ViolationCategory, Rule: cat, MatchedText: m}) {
					return res
				}
				break // one hit per category is enough
			}
		}
	}
	return res
}

// match returns the matched substring of a case-insensitive whole-word search.
func (g *GuardrailEnforcer) match(text, keyword string) string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return ""
	}
	re, ok := g.patterns.Load(keyword)
	if !ok {
		re, _ = g.patterns.LoadOrStore(keyword, compileKeyword(keyword))
	}
	return re.(*regexp.Regexp).FindString(text)
}

// compileKeyword anchors word boundaries only on edges that are ASCII word
// characters (RE2 \b is ASCII-only), so keywords such as "c++" or "#tag" still match.
func compileKeyword(kw string) *regexp.Regexp {
	first, _ := utf8.DecodeRuneInString(kw)
	last, _ := utf8.DecodeLastRuneInString(kw)
	var b strings.Builder
	b.WriteString(`(?i)`)
	if isWordRune(first) {
		b.WriteString(`\b`)
	}
	b.WriteString(regexp.QuoteMeta(kw))
	if isWordRune(last) {
		b.WriteString(`\b`)
	}
	return regexp.MustCompile(b.String())
}

func isWordRune(r rune) bool {
	return r < utf8.RuneSelf && (r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
}

func (g *GuardrailEnforcer) avoidTopics(vs []model.GuardrailViolation) []string {
	seen := make(map[string]struct{}, len(vs))
	out := make([]string, 0, g.maxAvoidTopics)
	for _, v := range vs {
		key := strings.ToLower(v.Rule)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.ReplaceAll(v.Rule, "_", " "))
		if len(out) == g.maxAvoidTopics {
			break
		}
	}
	return out
}

func warningFor(v model.GuardrailViolation) string {
	if v.Type == model.ViolationCategory {
		return "This suggestion may touch on " + strings.ReplaceAll(v.Rule, "_", " ") + " (\"" + v.MatchedText + "\")."
	}
	return "This suggestion mentions a flagged term: \"" + v.MatchedText + "\"."
}
