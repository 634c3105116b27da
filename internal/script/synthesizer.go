// Package script builds the spoken task text for an outbound call.
package script

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

// Placeholder tokens accepted in stored call scripts.
const (
	NameToken         = "{{name}}"
	BusinessNameToken = "{{businessName}}"
)

const (
	defaultPersona    = "AI Assistant"
	defaultCompany    = "Callify"
	defaultPreviewLen = 100

	knownBusinessFallback   = "the business"
	unknownBusinessFallback = "Unknown Business"
)

// Source records which branch produced a script.
type Source string

// Script sources.
const (
	SourceVerbatim  Source = "verbatim"
	SourceAssembled Source = "assembled"
	SourceFallback  Source = "fallback"
)

// Script is the final task text handed to the voice provider.
type Script struct {
	Text         string
	BusinessName string
	Source       Source
}

// Config shapes generated scripts.
type Config struct {
	Persona       string
	Company       string
	PreviewLength int
}

// Synthesizer turns an optional analysis into a call script.
type Synthesizer struct {
	persona    string
	company    string
	previewLen int
}

// New builds a Synthesizer, filling unset fields with defaults.
func New(cfg Config) *Synthesizer {
	s := &Synthesizer{
		persona:    cfg.Persona,
		company:    cfg.Company,
		previewLen: cfg.PreviewLength,
	}
	if s.persona == "" {
		s.persona = defaultPersona
	}
	if s.company == "" {
		s.company = defaultCompany
	}
	if s.previewLen <= 0 {
		s.previewLen = defaultPreviewLen
	}
	return s
}

// Synthesize produces the script for a call to targetName. rec may be nil.
// businessNameHint is used when the analysis carries no business name.
func (s *Synthesizer) Synthesize(targetName, businessNameHint string, rec *callify.AnalysisRecord) Script {
	if rec == nil {
		business := firstNonEmpty(businessNameHint, unknownBusinessFallback)
		text := fmt.Sprintf(
			"Hello, this is a test call from %s. We're testing our AI-powered phone automation platform. Is this %s?",
			s.company, targetName,
		)
		return Script{Text: Substitute(text, targetName, business), BusinessName: business, Source: SourceFallback}
	}

	a := rec.Analysis
	business := firstNonEmpty(strings.TrimSpace(a.BusinessName), businessNameHint, knownBusinessFallback)
	if strings.TrimSpace(a.CallScript) != "" {
		return Script{Text: Substitute(a.CallScript, targetName, business), BusinessName: business, Source: SourceVerbatim}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello, my name is %s from %s. I'm calling about %s. ", s.persona, s.company, business)
	if summary := strings.TrimSpace(a.Summary); summary != "" {
		fmt.Fprintf(&b, "I understand that %s ", summary)
	}
	fmt.Fprintf(&b, "I'd like to speak with %s please. ", targetName)
	if questions := nonEmpty(a.Questions); len(questions) > 0 {
		fmt.Fprintf(&b, "I wanted to ask a few questions: %s ", strings.Join(questions, " "))
	}
	b.WriteString("Thank you for your time.")

	return Script{Text: Substitute(b.String(), targetName, business), BusinessName: business, Source: SourceAssembled}
}

// Substitute replaces every name and business-name token in text. Values are
// first resolved against each other so the result holds no tokens, and the
// replacement is a single pass so the outcome does not depend on token order.
func Substitute(text, name, businessName string) string {
	cleanName := stripTokens(strings.ReplaceAll(name, BusinessNameToken, businessName))
	cleanBusiness := stripTokens(strings.ReplaceAll(businessName, NameToken, name))
	return strings.NewReplacer(NameToken, cleanName, BusinessNameToken, cleanBusiness).Replace(text)
}

var tokenStripper = strings.NewReplacer(NameToken, "", BusinessNameToken, "")

func stripTokens(v string) string {
	for strings.Contains(v, NameToken) || strings.Contains(v, BusinessNameToken) {
		v = tokenStripper.Replace(v)
	}
	return v
}

// Preview returns text cut to the configured length for logging.
func (s *Synthesizer) Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= s.previewLen {
		return text
	}
	return string(runes[:s.previewLen]) + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
