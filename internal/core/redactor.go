package core

import (
	"fmt"
	"regexp"
	"strings"
)

// RedactionPattern describes one kind of secret. When CaptureGroup is set
// only that group is replaced, keeping the surrounding text readable.
type RedactionPattern struct {
	Name         string
	Type         string
	Pattern      string
	CaptureGroup int
}

// DefaultRedactionPatterns returns the built-in secret patterns.
func DefaultRedactionPatterns() []RedactionPattern {
	return []RedactionPattern{
		{Name: "Anthropic API Key", Type: "api_key", Pattern: `sk-ant-[A-Za-z0-9_-]{20,}`},
		{Name: "OpenAI API Key", Type: "api_key", Pattern: `sk-(?:proj-)?[A-Za-z0-9]{32,}`},
		{Name: "AWS Access Key", Type: "aws_key", Pattern: `\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`},
		{Name: "AWS Secret Key", Type: "aws_secret", Pattern: `(?i)aws_secret_access_key\s*[=:]\s*["']?([A-Za-z0-9/+=]{40})`, CaptureGroup: 1},
		{Name: "GitHub Token", Type: "github_token", Pattern: `\bgh[pousr]_[A-Za-z0-9]{36,}\b`},
		{Name: "Slack Token", Type: "slack_token", Pattern: `xox[baprs]-[0-9A-Za-z-]{10,72}`},
		{Name: "JWT Token", Type: "jwt", Pattern: `eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`},
		{Name: "Private Key Block", Type: "private_key", Pattern: `(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?(?:-----END [A-Z ]*PRIVATE KEY-----|$)`},
		{Name: "Bearer Token", Type: "bearer_token", Pattern: `(?i)\bbearer\s+([A-Za-z0-9._~+/=-]{16,})`, CaptureGroup: 1},
		{Name: "URL Password", Type: "password", Pattern: `(://[^:/@\s\[\]]+:)([^@\s]+)(@)`, CaptureGroup: 2},
		{Name: "Password Assignment", Type: "password", Pattern: `(?i)(?:password|passwd|pwd|secret|api_key|apikey|token)\s*[=:]\s*["']?([^\s"',;\[][^\s"',;]{3,})`, CaptureGroup: 1},
	}
}

// Redactor replaces secrets in outbound text with [REDACTED:TYPE] markers.
type Redactor interface {
	Redact(input string) string
}

type compiledPattern struct {
	regex        *regexp.Regexp
	marker       string
	captureGroup int
}

type regexRedactor struct {
	patterns []compiledPattern
}

// NewRedactor compiles the given patterns.
func NewRedactor(patterns []RedactionPattern) (Redactor, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", p.Name, err)
		}
		if p.CaptureGroup > re.NumSubexp() {
			return nil, fmt.Errorf("pattern %q has no capture group %d", p.Name, p.CaptureGroup)
		}
		compiled = append(compiled, compiledPattern{
			regex:        re,
			marker:       fmt.Sprintf("[REDACTED:%s]", strings.ToUpper(p.Type)),
			captureGroup: p.CaptureGroup,
		})
	}
	return &regexRedactor{patterns: compiled}, nil
}

// NewDefaultRedactor returns a Redactor over DefaultRedactionPatterns.
func NewDefaultRedactor() Redactor {
	r, err := NewRedactor(DefaultRedactionPatterns())
	if err != nil {
		panic(err)
	}
	return r
}

func (r *regexRedactor) Redact(input string) string {
	result := input
	for _, p := range r.patterns {
		if p.captureGroup == 0 {
			result = p.regex.ReplaceAllLiteralString(result, p.marker)
			continue
		}
		result = replaceGroup(result, p)
	}
	return result
}

// replaceGroup replaces only the capture group of every match.
func replaceGroup(input string, p compiledPattern) string {
	matches := p.regex.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[2*p.captureGroup], m[2*p.captureGroup+1]
		if start < 0 {
			continue
		}
		b.WriteString(input[last:start])
		b.WriteString(p.marker)
		last = end
	}
	b.WriteString(input[last:])
	return b.String()
}
