// Package query translates the four ocrlocate search dialects (simple,
// match, glob, regex) into either an FTS5 match expression or a
// standalone pattern matcher, and formats the highlighted snippet shown
// in search output. It is grounded in the phrase-quoting and escaping
// rules implemented by the Rust original's db.rs `search` function.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"ocrlocate/internal/model"
)

const snippetWidth = 64

// BuildMatchExpr turns Simple/Match terms into an FTS5 MATCH expression.
// Glob/Regex kinds do not produce a MATCH expression; callers should use
// Matcher instead for those.
func BuildMatchExpr(kind model.QueryKind, terms []string) (string, error) {
	joined := strings.Join(terms, " ")
	switch kind {
	case model.QuerySimple:
		escaped := strings.ReplaceAll(joined, "*", `\*`)
		return `"` + escaped + `"`, nil
	case model.QueryMatch:
		return joined, nil
	default:
		return "", fmt.Errorf("%w: BuildMatchExpr called with non-FTS kind %s", model.ErrQueryParse, kind)
	}
}

// Matcher reports whether text satisfies a Glob or Regex query and, when
// it does, where the first match starts and ends (byte offsets into
// text) so a snippet can be built around it.
type Matcher interface {
	Match(text string) (ok bool, start, end int)
}

// NewMatcher compiles a Glob or Regex pattern built from the query terms.
func NewMatcher(kind model.QueryKind, terms []string) (Matcher, error) {
	pattern := strings.Join(terms, " ")
	switch kind {
	case model.QueryGlob:
		if _, err := doublestar.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("%w: invalid glob pattern: %v", model.ErrQueryParse, err)
		}
		return globMatcher{pattern: pattern}, nil
	case model.QueryRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid regex: %v", model.ErrQueryParse, err)
		}
		return regexMatcher{re: re}, nil
	default:
		return nil, fmt.Errorf("%w: NewMatcher called with FTS kind %s", model.ErrQueryParse, kind)
	}
}

type globMatcher struct {
	pattern string
}

func (m globMatcher) Match(text string) (bool, int, int) {
	ok, _ := doublestar.Match(m.pattern, text)
	if !ok {
		return false, 0, 0
	}
	return true, 0, len(text)
}

type regexMatcher struct {
	re *regexp.Regexp
}

func (m regexMatcher) Match(text string) (bool, int, int) {
	loc := m.re.FindStringIndex(text)
	if loc == nil {
		return false, 0, 0
	}
	return true, loc[0], loc[1]
}

// Snippet builds a 64-character window of content around [start,end),
// wraps the matched span in '[' ']', and ellipsises truncated edges with
// '..', matching the storage layer's FTS5 snippet() formatting for the
// MATCH-backed dialects.
func Snippet(content string, start, end int) string {
	if start < 0 || end > len(content) || start > end {
		return truncate(content, snippetWidth)
	}

	runes := []rune(content)
	byteToRune := make(map[int]int, len(runes)+1)
	pos := 0
	for i, r := range content {
		byteToRune[i] = pos
		_ = r
		pos++
	}
	byteToRune[len(content)] = pos

	rStart, rEnd := byteToRune[start], byteToRune[end]
	budget := snippetWidth - (rEnd - rStart)
	if budget < 0 {
		budget = 0
	}
	lead := budget / 2
	trail := budget - lead

	from := rStart - lead
	leadEllipsis := from > 0
	if from < 0 {
		from = 0
	}
	to := rEnd + trail
	trailEllipsis := to < len(runes)
	if to > len(runes) {
		to = len(runes)
	}

	var b strings.Builder
	if leadEllipsis {
		b.WriteString("..")
	}
	b.WriteString(string(runes[from:rStart]))
	b.WriteByte('[')
	b.WriteString(string(runes[rStart:rEnd]))
	b.WriteByte(']')
	b.WriteString(string(runes[rEnd:to]))
	if trailEllipsis {
		b.WriteString("..")
	}
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + ".."
}
