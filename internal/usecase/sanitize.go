package usecase

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const filteredMarker = "[filtered]"

var (
	// role markers and chat-template tokens that let pasted text pose as another turn
	roleMarkerRe = regexp.MustCompile(`(?im)^\s*(system|assistant|developer)\s*:`)
	templateRe   = regexp.MustCompile(`(?i)<\|[a-z_ ]*\|>|</?\s*(system|instructions?|context|message|conversation|previous_suggestion)\b[^>]*>`)
	injectionRe  = regexp.MustCompile(`(?i)\b(ignore|disregard|forget|override)\b[^.\n]{0,40}\b(previous|prior|above|earlier|all|system)\b[^.\n]{0,20}\b(instructions?|prompts?|rules|directives?|messages?)\b`)
	revealRe     = regexp.MustCompile(`(?i)\b(reveal|print|show|repeat)\b[^.\n]{0,30}\b(system prompt|hidden instructions|your instructions)\b`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)

	// things models prepend to a reply despite being told not to
	leadLabelRe = regexp.MustCompile(`(?i)^\s*(suggested reply|suggestion|reply|response|draft|assistant)\s*:\s*`)
	fenceRe     = regexp.MustCompile("^```[a-zA-Z]*\\n?|\\n?```$")
)

// Sanitizer cleans untrusted text before it enters a prompt and model output
// before it reaches a user.
type Sanitizer struct {
	maxInput  int
	maxOutput int
}

func NewSanitizer(maxInputChars, maxOutputChars int) *Sanitizer {
	if maxInputChars <= 0 {
		maxInputChars = 4000
	}
	if maxOutputChars <= 0 {
		maxOutputChars = 2000
	}
	return &Sanitizer{maxInput: maxInputChars, maxOutput: maxOutputChars}
}

// Input neutralizes prompt-injection attempts and caps the length.
func (s *Sanitizer) Input(text string) string {
	text = stripControl(text)
	text = templateRe.ReplaceAllString(text, "")
	text = roleMarkerRe.ReplaceAllString(text, "$1 said:")
	text = injectionRe.ReplaceAllString(text, filteredMarker)
	text = revealRe.ReplaceAllString(text, filteredMarker)
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return truncateRunes(strings.TrimSpace(text), s.maxInput)
}

// Output strips labels, fences and wrapping quotes the model added around the
// reply and caps the length. An empty result means the output is unusable.
func (s *Sanitizer) Output(text string) string {
	text = stripControl(text)
	text = strings.TrimSpace(templateRe.ReplaceAllString(text, ""))
	text = strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
	text = leadLabelRe.ReplaceAllString(text, "")
	text = unquote(strings.TrimSpace(text))
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return truncateRunes(strings.TrimSpace(text), s.maxOutput)
}

func stripControl(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\u200b' || r == '\u200c' || r == '\u200d' || r == '\u2060' || r == '\ufeff':
			return -1
		case unicode.IsControl(r), unicode.Is(unicode.Bidi_Control, r):
			return -1
		}
		return r
	}, text)
}

func unquote(text string) string {
	pairs := [][2]string{{`"`, `"`}, {"'", "'"}, {"\u201c", "\u201d"}}
	for _, p := range pairs {
		if len(text) >= len(p[0])+len(p[1]) && strings.HasPrefix(text, p[0]) && strings.HasSuffix(text, p[1]) {
			inner := text[len(p[0]) : len(text)-len(p[1])]
			if !strings.Contains(inner, p[0]) {
				return inner
			}
		}
	}
	return text
}

func truncateRunes(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:max]))
}
