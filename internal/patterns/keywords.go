package patterns

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Keywords is a compiled, accent tolerant and case insensitive set of words
// or phrases that only match on whole words.
type Keywords struct {
	// Label names the role or meaning of the set, e.g. "comprador".
	Label string

	words []string
	re    *regexp.Regexp
}

// NewKeywords compiles words into a keyword set.
func NewKeywords(label string, words ...string) *Keywords {
	sorted := append([]string(nil), words...)
	// Longest first so "TRANSFERENCIA BANCARIA" wins over "TRANSFERENCIA"
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	alts := make([]string, 0, len(sorted))
	for _, w := range sorted {
		if w = strings.TrimSpace(w); w != "" {
			alts = append(alts, accentTolerant(w))
		}
	}
	expr := `(?i)(?:^|[^\p{L}\p{N}])(` + strings.Join(alts, "|") + `)(?:[^\p{L}\p{N}]|$)`
	return &Keywords{Label: label, words: words, re: regexp.MustCompile(expr)}
}

// Words returns the configured words in their original order.
func (k *Keywords) Words() []string {
	return append([]string(nil), k.words...)
}

// FindAll returns the [start, end) byte offsets of every keyword occurrence.
func (k *Keywords) FindAll(text string) [][2]int {
	var out [][2]int
	for from := 0; from < len(text); {
		loc := k.re.FindStringSubmatchIndex(text[from:])
		if loc == nil {
			break
		}
		start, end := from+loc[2], from+loc[3]
		out = append(out, [2]int{start, end})
		// Resume at the end of the keyword so the boundary character can be reused
		from = end
		if end == start {
			from++
		}
	}
	return out
}

// Find returns the first occurrence and its matched text.
func (k *Keywords) Find(text string) (string, int, bool) {
	loc := k.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", -1, false
	}
	return text[loc[2]:loc[3]], loc[2], true
}

// In reports whether any keyword occurs in text.
func (k *Keywords) In(text string) bool {
	return k.re.MatchString(text)
}

// accentTolerant turns a keyword into a pattern that matches it with or
// without Spanish diacritics and with flexible whitespace.
func accentTolerant(word string) string {
	var b strings.Builder
	for _, r := range Fold(word) {
		switch r {
		case 'A':
			b.WriteString("[AÁ]")
		case 'E':
			b.WriteString("[EÉ]")
		case 'I':
			b.WriteString("[IÍ]")
		case 'O':
			b.WriteString("[OÓ]")
		case 'U':
			b.WriteString("[UÚÜ]")
		case 'N':
			b.WriteString("[NÑ]")
		case ' ':
			b.WriteString(`\s+`)
		case '.':
			b.WriteString(`\.?`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

type keywordHit struct {
	label      string
	start, end int
}

// Context indexes keyword occurrences in one text so that candidates can be
// disambiguated by the nearest keyword within a character window.
type Context struct {
	text   string
	window int
	hits   []keywordHit
}

// NewContext scans text once for every keyword set.
func NewContext(text string, window int, sets ...*Keywords) *Context {
	c := &Context{text: text, window: window}
	for _, set := range sets {
		for _, loc := range set.FindAll(text) {
			c.hits = append(c.hits, keywordHit{label: set.Label, start: loc[0], end: loc[1]})
		}
	}
	sort.Slice(c.hits, func(i, j int) bool { return c.hits[i].start < c.hits[j].start })
	return c
}

// Nearest returns the label of the keyword closest to the [start, end) span,
// provided it lies within the window. Spans are byte offsets into the text;
// distances are counted in characters. On equal distance the keyword that
// precedes the span wins.
func (c *Context) Nearest(start, end int) (label string, distance int, ok bool) {
	best := -1
	bestDist := 0
	for i, h := range c.hits {
		d := c.distance(h.start, h.end, start, end)
		if d > c.window {
			continue
		}
		if best < 0 || d < bestDist || (d == bestDist && h.start < start && c.hits[best].start >= start) {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return "", 0, false
	}
	return c.hits[best].label, bestDist, true
}

// Near reports whether a keyword with the given label lies within the window.
func (c *Context) Near(label string, start, end int) bool {
	for _, h := range c.hits {
		if h.label == label && c.distance(h.start, h.end, start, end) <= c.window {
			return true
		}
	}
	return false
}

// distance counts the characters between two byte spans of the text.
func (c *Context) distance(aStart, aEnd, bStart, bEnd int) int {
	switch {
	case aEnd <= bStart:
		return c.runes(aEnd, bStart)
	case bEnd <= aStart:
		return c.runes(bEnd, aStart)
	default:
		return 0
	}
}

func (c *Context) runes(from, to int) int {
	if from < 0 || to > len(c.text) || from > to {
		return to - from
	}
	return utf8.RuneCountInString(c.text[from:to])
}
