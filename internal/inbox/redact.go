package inbox

import "regexp"

// DefaultRedactions mask contact details before text reaches the journal.
var DefaultRedactions = []string{
	`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
	`\+?\d[\d \-]{7,}\d`,
}

// Redactor masks substrings matching any of its patterns.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor compiles the patterns. It fails on the first invalid one.
func NewRedactor(patterns []string) (*Redactor, error) {
	r := &Redactor{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Redact replaces every match with "***".
func (r *Redactor) Redact(text string) string {
	if r == nil {
		return text
	}
	for _, p := range r.patterns {
		text = p.ReplaceAllString(text, "***")
	}
	return text
}
