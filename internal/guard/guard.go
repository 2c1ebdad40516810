// Package guard sanitizes prompts before they leave the process and validates
// model output against a declared schema before it is trusted.
package guard

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrPromptTooShort  = errors.New("prompt is shorter than the minimum length")
	ErrPromptTooLong   = errors.New("prompt exceeds the maximum length")
	ErrPromptInjection = errors.New("prompt contains an injection pattern")
	ErrInvalidOutput   = errors.New("model output failed validation")
)

const (
	defaultMinLength = 1
	defaultMaxLength = 16000
	previewLength    = 256
)

type Config struct {
	MinLength int
	MaxLength int
	// StrictInjection rejects prompts with injection patterns instead of
	// neutralizing them.
	StrictInjection bool
}

// PromptGuard is safe for concurrent use.
type PromptGuard struct {
	cfg Config
}

func New(cfg Config) *PromptGuard {
	if cfg.MinLength <= 0 {
		cfg.MinLength = defaultMinLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = defaultMaxLength
	}
	return &PromptGuard{cfg: cfg}
}

type SanitizeResult struct {
	Prompt        string
	MaskedPII     map[string]int
	Neutralized   int
	OriginalRunes int
}

type piiPattern struct {
	label string
	re    *regexp.Regexp
}

// Order matters: longer digit runs are masked before shorter ones can claim them.
var piiPatterns = []piiPattern{
	{"EMAIL", regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{"SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"CARD", regexp.MustCompile(`\b(?:\d[ -]?){12,15}\d\b`)},
	{"PHONE", regexp.MustCompile(`(?:\+\d{1,3}[ .-]?)?(?:\(\d{3}\)|\b\d{3})[ .-]?\d{3}[ .-]?\d{4}\b`)},
}

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(?:all\s+)?(?:the\s+)?(?:previous|prior|above|earlier)\s+(?:instructions|prompts|messages)`),
	regexp.MustCompile(`(?i)disregard\s+(?:all\s+)?(?:the\s+)?(?:previous|prior|above|earlier)\s+\w+`),
	regexp.MustCompile(`(?i)forget\s+(?:everything|all\s+(?:previous|prior)\s+\w+)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(?:a|an|the)\b`),
	regexp.MustCompile(`(?i)reveal\s+(?:your|the)\s+system\s+prompt`),
	regexp.MustCompile(`(?i)</?\s*(?:system|assistant)\s*>`),
}

const neutralized = "[REMOVED]"

// Sanitize masks PII, strips control characters, neutralizes injection
// phrases and enforces length limits on the result.
func (g *PromptGuard) Sanitize(prompt string) (*SanitizeResult, error) {
	res := &SanitizeResult{
		MaskedPII:     make(map[string]int),
		OriginalRunes: utf8.RuneCountInString(prompt),
	}

	out := stripControl(prompt)

	for _, re := range injectionPatterns {
		matches := re.FindAllStringIndex(out, -1)
		if len(matches) == 0 {
			continue
		}
		if g.cfg.StrictInjection {
			return nil, ErrPromptInjection
		}
		res.Neutralized += len(matches)
		out = re.ReplaceAllString(out, neutralized)
	}

	out = maskPII(out, res.MaskedPII)
	out = strings.TrimSpace(out)

	n := utf8.RuneCountInString(out)
	if n < g.cfg.MinLength {
		return nil, ErrPromptTooShort
	}
	if n > g.cfg.MaxLength {
		return nil, ErrPromptTooLong
	}

	res.Prompt = out
	return res, nil
}

// MaskPII replaces emails, phone numbers, SSNs and card numbers with
// bracketed labels.
func MaskPII(s string) string {
	return maskPII(s, nil)
}

// Preview masks PII and truncates to a short, log-safe excerpt.
func Preview(s string) string {
	masked := MaskPII(stripControl(s))
	if utf8.RuneCountInString(masked) <= previewLength {
		return masked
	}
	r := []rune(masked)
	return string(r[:previewLength]) + "..."
}

func maskPII(s string, counts map[string]int) string {
	for _, p := range piiPatterns {
		label := "[" + p.label + "]"
		s = p.re.ReplaceAllStringFunc(s, func(string) string {
			if counts != nil {
				counts[p.label]++
			}
			return label
		})
	}
	return s
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
