package rules

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// PatternSpec is one rule as written in a rule-set file.
type PatternSpec struct {
	Name    string `toml:"name"`
	Pattern string `toml:"pattern"`
	// Reply is the canned response for small-talk rules.
	Reply string `toml:"reply"`
	// MaxLength limits an unanswered rule to replies shorter than it.
	MaxLength int `toml:"max_length"`
}

type fileDoc struct {
	Stopwords  []string      `toml:"stopwords"`
	Disallowed []PatternSpec `toml:"disallowed"`
	Unanswered []PatternSpec `toml:"unanswered"`
	SmallTalk  []PatternSpec `toml:"small_talk"`
}

// Reply is a rule with a canned response.
type Reply struct {
	Rule
	Text string
}

// Limited is a rule that only applies to text shorter than MaxLength
// runes. Zero means no limit.
type Limited struct {
	Rule
	MaxLength int
}

// Set is a compiled rule-set file. A nil field means the section was absent
// and the built-in defaults apply.
type Set struct {
	Stopwords  []string
	Disallowed []Rule
	Unanswered []Limited
	SmallTalk  []Reply
}

// Load reads a rule-set file. An empty path returns an empty Set.
func Load(path string) (*Set, error) {
	if path == "" {
		return &Set{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return set, nil
}

// Parse compiles a TOML rule set. Unknown keys are rejected.
func Parse(data []byte) (*Set, error) {
	var doc fileDoc
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown keys: %s", strict.String())
		}
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	set := &Set{Stopwords: doc.Stopwords}

	var err error
	if doc.Disallowed != nil {
		if set.Disallowed, err = compileAll("disallowed", doc.Disallowed); err != nil {
			return nil, err
		}
	}
	if doc.Unanswered != nil {
		compiled, err := compileAll("unanswered", doc.Unanswered)
		if err != nil {
			return nil, err
		}
		set.Unanswered = make([]Limited, len(compiled))
		for i, r := range compiled {
			set.Unanswered[i] = Limited{Rule: r, MaxLength: doc.Unanswered[i].MaxLength}
		}
	}
	if doc.SmallTalk != nil {
		compiled, err := compileAll("small_talk", doc.SmallTalk)
		if err != nil {
			return nil, err
		}
		set.SmallTalk = make([]Reply, len(compiled))
		for i, r := range compiled {
			if doc.SmallTalk[i].Reply == "" {
				return nil, fmt.Errorf("small_talk rule %s: reply is required", r.Name)
			}
			set.SmallTalk[i] = Reply{Rule: r, Text: doc.SmallTalk[i].Reply}
		}
	}
	return set, nil
}

func compileAll(section string, specs []PatternSpec) ([]Rule, error) {
	out := make([]Rule, 0, len(specs))
	for i, s := range specs {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d", section, i+1)
		}
		if s.Pattern == "" {
			return nil, fmt.Errorf("%s rule %s: pattern is required", section, name)
		}
		r, err := New(name, s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", section, err)
		}
		out = append(out, r)
	}
	return out, nil
}
