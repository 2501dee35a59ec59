// Package privacy decides which components are private, i.e. hidden from
// other parties of the evaluation service.
package privacy

import "strings"

// Separator splits the configured pattern list.
const Separator = ";"

// Classifier matches components against a list of group or group:artifact
// patterns. The zero value matches nothing.
type Classifier struct {
	patterns []string
}

// New parses a semicolon separated pattern list. Empty tokens are skipped;
// a token like "org.acme" matches a whole group and "org.acme:foo" a single
// artifact. Tokens are compared as given, surrounding spaces included.
// Anything else never matches.
func New(patterns string) *Classifier {
	c := &Classifier{}
	for _, token := range strings.Split(patterns, Separator) {
		if token == "" {
			continue
		}
		c.patterns = append(c.patterns, token)
	}
	return c
}

// IsPrivate reports whether any pattern equals group (for group patterns) or
// group:artifact (for patterns containing a colon).
func (c *Classifier) IsPrivate(group, artifact string) bool {
	if c == nil {
		return false
	}
	for _, p := range c.patterns {
		if strings.Contains(p, ":") {
			if p == group+":"+artifact {
				return true
			}
		} else if p == group {
			return true
		}
	}
	return false
}

// Patterns returns the parsed patterns.
func (c *Classifier) Patterns() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.patterns...)
}
