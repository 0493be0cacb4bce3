package pagetext

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// contentNodes picks the main-content subtrees of a parsed page.
//
// Semantic landmarks win when present: <main>, <article>, or any element
// carrying role="main". When a page has none, the subtree with the best
// text-density score is used instead.
func contentNodes(doc *html.Node, minLen int) []*html.Node {
	var picked []*html.Node
	for _, n := range landmarks(doc) {
		if boilerplate(n) {
			continue
		}
		if len(collectText(n)) >= minLen {
			picked = append(picked, n)
		}
	}
	if len(picked) > 0 {
		return picked
	}

	root := elementByAtom(doc, atom.Body)
	if root == nil {
		root = doc
	}
	if best := densestNode(root, minLen); best != nil {
		return []*html.Node{best}
	}
	return nil
}

// landmarks returns semantic main-content elements in document order.
func landmarks(doc *html.Node) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.Main || n.DataAtom == atom.Article:
				found = append(found, n)
				return // do not double-count nested landmarks
			case attr(n, "role") == "main":
				found = append(found, n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

// candidate holds density scoring for one subtree.
type candidate struct {
	node    *html.Node
	textLen int
	score   float64
}

// densestNode scores content-bearing subtrees by text-to-markup density,
// penalizing link-heavy regions, and returns the winner.
func densestNode(root *html.Node, minLen int) *html.Node {
	var best *candidate

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type != html.ElementNode || boilerplate(n) {
			return
		}
		if contentTag(n.DataAtom) {
			if c := scoreNode(n, minLen); c != nil && (best == nil || c.score > best.score) {
				best = c
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if best == nil {
		return nil
	}
	return best.node
}

func scoreNode(n *html.Node, minLen int) *candidate {
	text := collectText(n)
	if len(text) < minLen {
		return nil
	}
	markup := len(renderNode(n))
	if markup == 0 {
		markup = 1
	}
	linkRatio := float64(len(linkText(n))) / float64(len(text))
	if linkRatio > 0.5 {
		// Mostly links: a menu or index, not prose.
		return nil
	}

	density := float64(len(text)) / float64(markup)
	return &candidate{
		node:    n,
		textLen: len(text),
		score:   density * sizeWeight(len(text)) * (1 - linkRatio),
	}
}

// sizeWeight grows logarithmically with text length so long articles beat
// dense snippets without length dominating outright.
func sizeWeight(n int) float64 {
	w := 1.0
	for n > 100 {
		w++
		n /= 2
	}
	return w
}

func contentTag(a atom.Atom) bool {
	switch a {
	case atom.Div, atom.Section, atom.Article, atom.Main, atom.Td, atom.Body:
		return true
	}
	return false
}

// boilerplate reports whether a subtree is navigation, chrome, or ads.
func boilerplate(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Nav, atom.Footer, atom.Header, atom.Aside,
		atom.Script, atom.Style, atom.Noscript, atom.Form:
		return true
	}
	switch attr(n, "role") {
	case "navigation", "banner", "contentinfo", "complementary":
		return true
	}
	hint := strings.ToLower(attr(n, "class") + " " + attr(n, "id"))
	for _, marker := range []string{"sidebar", "footer", "navbar", "cookie", "advert", "promo"} {
		if strings.Contains(hint, marker) {
			return true
		}
	}
	return false
}

// collectText gathers whitespace-trimmed text content, skipping script and
// style subtrees.
func collectText(nodes ...*html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return sb.String()
}

// linkText gathers only the text inside <a> elements.
func linkText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inLink bool) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			inLink = true
		}
		if n.Type == html.TextNode && inLink {
			sb.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inLink)
		}
	}
	walk(n, false)
	return sb.String()
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}

func pageTitle(doc *html.Node) string {
	t := elementByAtom(doc, atom.Title)
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return strings.TrimSpace(t.FirstChild.Data)
}

func elementByAtom(doc *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
