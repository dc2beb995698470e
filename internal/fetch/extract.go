package fetch

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// hidden elements never contribute text. <head> is read only for the title.
var hidden = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Noscript: true,
	atom.Template: true, atom.Iframe: true, atom.Svg: true,
	atom.Nav: true, atom.Header: true, atom.Footer: true,
}

// blocks start a new paragraph in the extracted text.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true, atom.Main: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Ul: true, atom.Ol: true, atom.Table: true,
	atom.Tr: true, atom.Dl: true, atom.Dt: true, atom.Dd: true, atom.Figure: true,
	atom.Figcaption: true, atom.Details: true, atom.Summary: true, atom.Hr: true,
}

// extractHTML returns the page title and the readable text of the
// first <main> element, or of the whole document when there is none.
func extractHTML(raw string) (title, text string) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", tokenText(raw)
	}

	root := doc
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode {
			continue
		}
		if n.DataAtom == atom.Title && title == "" {
			title = strings.TrimSpace(innerText(n))
		}
		if n.DataAtom == atom.Main && root == doc {
			root = n
		}
	}

	var b strings.Builder
	writeText(&b, root)
	return title, cleanWhitespace(b.String())
}

func innerText(n *html.Node) string {
	var b strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
		}
	}
	return b.String()
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if s := strings.TrimSpace(n.Data); s != "" {
			b.WriteString(s)
			b.WriteByte(' ')
		}
		return
	case html.ElementNode:
		if hidden[n.DataAtom] {
			return
		}
		if blocks[n.DataAtom] && b.Len() > 0 {
			b.WriteString("\n\n")
		}
	}

	for c := range n.ChildNodes() {
		writeText(b, c)
	}

	if n.DataAtom == atom.Br || n.DataAtom == atom.Li {
		b.WriteByte('\n')
	}
}

// cleanWhitespace collapses runs of blanks within lines and runs of
// empty lines into one.
func cleanWhitespace(s string) string {
	var out []string
	blank := false
	for line := range strings.SplitSeq(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" && blank {
			continue
		}
		blank = line == ""
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// tokenText is the fallback for markup html.Parse rejects: it keeps
// every text token.
func tokenText(raw string) string {
	z := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return cleanWhitespace(b.String())
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}
}
