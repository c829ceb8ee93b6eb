// Package rules holds named, ordered pattern rules and the TOML rule-set
// file that overrides the built-in sets.
package rules

import (
	"fmt"
	"regexp"
)

// Rule is a named pattern. Rule lists are evaluated in order and the first
// match wins.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// New compiles expr case-insensitively.
func New(name, expr string) (Rule, error) {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return Rule{}, fmt.Errorf("compile rule %s: %w", name, err)
	}
	return Rule{Name: name, Pattern: re}, nil
}

// MustNew is New for built-in rules; it panics on a bad pattern.
func MustNew(name, expr string) Rule {
	r, err := New(name, expr)
	if err != nil {
		panic(err)
	}
	return r
}

// Match reports whether text matches the rule.
func (r Rule) Match(text string) bool {
	return r.Pattern != nil && r.Pattern.MatchString(text)
}

// FirstMatch returns the first rule in list that matches text.
func FirstMatch(list []Rule, text string) (Rule, bool) {
	for _, r := range list {
		if r.Match(text) {
			return r, true
		}
	}
	return Rule{}, false
}
