// Package wikilink extracts and rewrites [[target]] and [[display|target]]
// references in page bodies.
package wikilink

import (
	"regexp"
	"strings"
)

var linkRe = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// ReplaceFunc renders one reference. For the single-part form display equals
// target.
type ReplaceFunc func(target, display string) string

// Extract returns every referenced target in order of appearance. Repeated
// references yield repeated entries; references with an empty target are
// skipped. A reference never contains '[' or ']', so "[[[foo]]" yields "foo".
func Extract(body string) []string {
	matches := linkRe.FindAllStringSubmatch(body, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		target, _ := split(m[1])
		if target == "" {
			continue
		}
		out = append(out, target)
	}
	return out
}

// Replace substitutes every reference with fn's result. References with an
// empty target are left untouched.
func Replace(body string, fn ReplaceFunc) string {
	return linkRe.ReplaceAllStringFunc(body, func(match string) string {
		inner := match[2 : len(match)-2]
		target, display := split(inner)
		if target == "" {
			return match
		}
		return fn(target, display)
	})
}

// split handles [[display|target]]: the part after the first separator is the
// target.
func split(raw string) (target, display string) {
	if i := strings.Index(raw, "|"); i >= 0 {
		return strings.TrimSpace(raw[i+1:]), strings.TrimSpace(raw[:i])
	}
	t := strings.TrimSpace(raw)
	return t, t
}
