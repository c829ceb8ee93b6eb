// Package safety post-processes generated replies before they reach a user.
package safety

import (
	"regexp"
	"strings"
)

// Rewrite is one ordered text substitution.
type Rewrite struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
}

// cleanRules strip markdown artifacts in order; later rules assume the
// earlier ones have run.
var cleanRules = []Rewrite{
	{Name: "bold", Pattern: regexp.MustCompile(`\*\*(.*?)\*\*`), Replace: "$1"},
	{Name: "italic", Pattern: regexp.MustCompile(`\*(.*?)\*`), Replace: "$1"},
	{Name: "underline-bold", Pattern: regexp.MustCompile(`__(.*?)__`), Replace: "$1"},
	{Name: "underline-italic", Pattern: regexp.MustCompile(`_(.*?)_`), Replace: "$1"},
	{Name: "code-block", Pattern: regexp.MustCompile("```[\\s\\S]*?```"), Replace: ""},
	{Name: "inline-code", Pattern: regexp.MustCompile("`([^`]+)`"), Replace: "$1"},
	{Name: "heading", Pattern: regexp.MustCompile(`(?m)^#{1,6}[ \t]*`), Replace: ""},
	{Name: "bullet", Pattern: regexp.MustCompile(`(?m)^[ \t]*[-*•#][ \t]+`), Replace: ""},
	{Name: "numbered", Pattern: regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`), Replace: ""},
	{Name: "separator", Pattern: regexp.MustCompile(`(?m)^[ \t]*[-*_]{2,}[ \t]*$`), Replace: ""},
	{Name: "stray-inner", Pattern: regexp.MustCompile(`\s+[*_]\s+`), Replace: " "},
	{Name: "stray-trailing", Pattern: regexp.MustCompile(`\s+[*_]$`), Replace: ""},
	{Name: "stray-leading", Pattern: regexp.MustCompile(`^[*_]\s+`), Replace: ""},
	{Name: "blank-lines", Pattern: regexp.MustCompile(`\n{3,}`), Replace: "\n\n"},
	{Name: "spaces", Pattern: regexp.MustCompile(`[ \t]+`), Replace: " "},
}

// Clean removes markdown formatting and collapses whitespace while keeping
// the text content.
func Clean(raw string) string {
	if raw == "" {
		return raw
	}
	out := raw
	for _, r := range cleanRules {
		out = r.Pattern.ReplaceAllString(out, r.Replace)
	}
	return strings.TrimSpace(out)
}
