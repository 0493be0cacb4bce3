// Package pagetext turns raw page HTML into canonical text.
//
// The output is the exact string evidence anchors take byte offsets into, so
// extraction must be deterministic: the same HTML always yields the same
// canonical text. Pages are sanitized, the main content region is selected
// (semantic landmarks first, text-density scoring as fallback), and the
// result is rendered as markdown.
package pagetext

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Method tags snapshots produced by this extractor. Bump the version suffix
// whenever a change alters the canonical text for unchanged HTML, since that
// invalidates every anchor minted under the old output.
const Method = "pagetext/md.v2"

// ErrNoContent means the page had no extractable main content.
var ErrNoContent = errors.New("pagetext: no extractable content")

// Result is one extraction.
type Result struct {
	Title         string
	CanonicalText string
}

// Extractor converts raw HTML into canonical markdown text. Safe for
// concurrent use; the sanitizer policy and markdown converter are reused
// across calls.
type Extractor struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
	minLen int
}

// New builds an Extractor with the UGC sanitizer policy and the
// commonmark+table markdown pipeline.
func New() *Extractor {
	return &Extractor{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		minLen: 80,
	}
}

// Extract produces the canonical text for a page. sourceURL is used to
// resolve relative links during markdown conversion.
func (e *Extractor) Extract(rawHTML, sourceURL string) (*Result, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, ErrNoContent
	}
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("pagetext: parse: %w", err)
	}

	title := pageTitle(doc)
	nodes := contentNodes(doc, e.minLen)
	if len(nodes) == 0 {
		return nil, ErrNoContent
	}

	fragments := make([]string, 0, len(nodes))
	for _, n := range nodes {
		fragments = append(fragments, renderNode(n))
	}
	clean := e.policy.Sanitize(strings.Join(fragments, "\n"))

	md, err := e.conv.ConvertString(clean, converter.WithDomain(sourceURL))
	if err != nil || strings.TrimSpace(md) == "" {
		// Markdown conversion is best-effort; plain text still anchors.
		md = collectText(nodes...)
	}

	canonical := normalize(md)
	if canonical == "" {
		return nil, ErrNoContent
	}
	return &Result{Title: title, CanonicalText: canonical}, nil
}

// normalize makes the text stable across renderings: LF line endings, no
// trailing whitespace per line, blank runs collapsed to one empty line, no
// leading/trailing blank lines.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")

	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
