// Package tags canonicalizes the free-text tag lists carried by portal
// catalog entries. The catalog only accepts alphanumeric tags with '_-.',
// and the portal mixes topical tags with internal markers and map-scale
// annotations that must not be published.
package tags

import (
	"strings"
	"unicode/utf8"
)

// Normalizer applies the blacklist and substitution tables to raw tag
// lists. Both tables are injected so deployments can override them per
// source.
type Normalizer struct {
	remove map[string]struct{}
	subs   map[string]string
}

// NewNormalizer creates a normalizer from a removal blacklist and a
// synonym-folding substitution table.
func NewNormalizer(remove []string, subs map[string]string) *Normalizer {
	removeSet := make(map[string]struct{}, len(remove))
	for _, tag := range remove {
		removeSet[tag] = struct{}{}
	}
	return &Normalizer{remove: removeSet, subs: subs}
}

// Run cleans a raw tag list. Entries are lower-cased, split again on
// commas and trimmed; blacklisted values are dropped, substitutions
// applied, single-character leftovers and map-scale markers ("1:...")
// discarded, and apostrophes replaced with spaces. Insertion order is
// preserved and duplicates are kept; this is a pure function.
func (n *Normalizer) Run(raw []string) []string {
	tags := []string{}
	for _, word := range raw {
		word = strings.ReplaceAll(strings.ToLower(word), "  ", " ")
		for _, part := range strings.Split(word, ",") {
			cleaned := strings.TrimSpace(part)
			if _, found := n.remove[cleaned]; found {
				continue
			}
			tag := cleaned
			if sub, found := n.subs[cleaned]; found {
				tag = sub
			}
			if utf8.RuneCountInString(tag) <= 1 {
				continue
			}
			tag = strings.ReplaceAll(tag, "'", " ")
			if strings.Contains(tag, "1:") {
				continue
			}
			tags = append(tags, tag)
		}
	}
	return tags
}
