// Package delta extracts structured state changes from narrator replies.
//
// The narrator is asked to close each reply with a block of the form
//
//	[STATS]
//	Attribute changes: intelligence+2, stress-1
//	Relationship changes: Professor Okafor+5
//	[/STATS]
//
// Parsing is forgiving: a missing block, a missing line or a malformed
// token never fails an action, it just contributes no changes.
package delta

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/storyloom/storyloom/internal/game/domain"
)

const (
	blockOpen  = "[STATS]"
	blockClose = "[/STATS]"

	attributePrefix    = "attribute changes:"
	relationshipPrefix = "relationship changes:"
)

var (
	tokenPattern      = regexp.MustCompile(`^(.+?)([+-])(\d+)$`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	lowercase = cases.Lower(language.Und)
)

// ExtractBlock returns the raw contents between the first [STATS] and
// [/STATS] markers, and whether a complete block was present.
func ExtractBlock(text string) (string, bool) {
	start := strings.Index(text, blockOpen)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(blockOpen):]
	end := strings.Index(rest, blockClose)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// StripBlock removes the stats block from a narrator reply, leaving the
// narrative text the player sees.
func StripBlock(text string) string {
	start := strings.Index(text, blockOpen)
	if start < 0 {
		return strings.TrimSpace(text)
	}
	rest := text[start+len(blockOpen):]
	end := strings.Index(rest, blockClose)
	if end < 0 {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:start] + rest[end+len(blockClose):])
}

// Parse extracts the deltas declared in a narrator reply. It never
// returns an error: narrator output is untrusted, and anything that does
// not match the contract is ignored.
func Parse(text string) domain.DeltaSet {
	block, ok := ExtractBlock(text)
	if !ok {
		return domain.DeltaSet{}
	}

	var deltas domain.DeltaSet
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		lower := lowercase.String(line)
		switch {
		case strings.HasPrefix(lower, attributePrefix):
			for name, value := range parseTokens(line[len(attributePrefix):]) {
				if deltas.Attributes == nil {
					deltas.Attributes = make(map[string]int)
				}
				deltas.Attributes[normalizeAttribute(name)] += value
			}
		case strings.HasPrefix(lower, relationshipPrefix):
			for name, value := range parseTokens(line[len(relationshipPrefix):]) {
				if deltas.Relationships == nil {
					deltas.Relationships = make(map[string]int)
				}
				// NPC names are kept verbatim so they match the
				// template roster and prior state.
				deltas.Relationships[name] += value
			}
		}
	}
	return deltas
}

// parseTokens splits a comma-separated change list and keeps the tokens
// that match <name><+|-><digits>.
func parseTokens(list string) map[string]int {
	out := make(map[string]int)
	for _, token := range strings.Split(list, ",") {
		token = strings.TrimSpace(token)
		if token == "" || lowercase.String(token) == "none" {
			continue
		}
		m := tokenPattern.FindStringSubmatch(token)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		value, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		if m[2] == "-" {
			value = -value
		}
		out[name] += value
	}
	return out
}

// normalizeAttribute canonicalizes an attribute name the way templates
// declare them: lowercased, inner whitespace collapsed to underscores.
func normalizeAttribute(name string) string {
	name = lowercase.String(strings.TrimSpace(name))
	return whitespacePattern.ReplaceAllString(name, "_")
}
