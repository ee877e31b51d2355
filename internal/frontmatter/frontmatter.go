// Package frontmatter splits a leading YAML field block from a page body and
// joins them back together.
//
// The on-disk shape is:
//
//	---
//	<yaml mapping>
//	---
//
//	<body>
//
// Decode(Encode(fields, body)) returns fields and body unchanged when every
// value already has the Go type yaml.v3 decodes to: string, int, float64,
// bool, []any and map[string]any. Other types come back in that form, so
// float64(1) and int64(1) both return as int(1) and []string as []any.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Decode separates the field block from the body. Text without a well-formed
// block (missing fences, invalid YAML, a non-mapping document) is returned
// whole as the body with an empty field map; Decode never fails.
func Decode(text string) (map[string]any, string) {
	block, body, ok := split(text)
	if !ok {
		return map[string]any{}, text
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(block), &fields); err != nil {
		return map[string]any{}, text
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, body
}

// Encode prefixes body with fields as a YAML block followed by one blank line.
// An empty field map returns body as is, unless body itself opens with a
// fence; then an empty block is written so Decode does not read the body's
// first lines as fields.
func Encode(fields map[string]any, body string) (string, error) {
	if len(fields) == 0 {
		if strings.HasPrefix(body, delim+"\n") {
			return delim + "\n" + delim + "\n\n" + body, nil
		}
		return body, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fields); err != nil {
		return "", fmt.Errorf("frontmatter: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("frontmatter: encode: %w", err)
	}

	var sb strings.Builder
	sb.Grow(buf.Len() + len(body) + 10)
	sb.WriteString(delim + "\n")
	sb.Write(buf.Bytes())
	sb.WriteString(delim + "\n\n")
	sb.WriteString(body)
	return sb.String(), nil
}

// split returns the raw YAML between the fences and the body after the closing
// fence with the single separating blank line removed.
func split(text string) (block, body string, ok bool) {
	if !strings.HasPrefix(text, delim+"\n") {
		return "", "", false
	}
	rest := text[len(delim)+1:]

	var after string
	switch {
	case rest == delim || strings.HasPrefix(rest, delim+"\n"):
		block, after = "", rest[len(delim):]
	default:
		idx := strings.Index(rest, "\n"+delim+"\n")
		if idx < 0 {
			if !strings.HasSuffix(rest, "\n"+delim) {
				return "", "", false
			}
			return rest[:len(rest)-len(delim)], "", true
		}
		block, after = rest[:idx+1], rest[idx+1+len(delim):]
	}

	// after starts with the newline that ends the closing fence.
	after = strings.TrimPrefix(after, "\n")
	return block, strings.TrimPrefix(after, "\n"), true
}
