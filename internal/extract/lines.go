package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// lineBreaks are the elements that start a new visual line.
var lineBreaks = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true,
	atom.Tr: true, atom.Td: true, atom.Th: true, atom.Dd: true, atom.Dt: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Address: true, atom.Section: true, atom.Article: true, atom.Ul: true, atom.Ol: true,
	atom.Table: true,
}

// textLines splits the text under every node of sel into visual lines,
// breaking on <br> and block elements. Blank lines are dropped and inner
// whitespace is collapsed.
func textLines(sel *goquery.Selection) []string {
	var (
		lines   []string
		current strings.Builder
	)
	flush := func() {
		if line := clean(current.String()); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			current.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
			if lineBreaks[n.DataAtom] {
				flush()
				defer flush()
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}

	for _, node := range sel.Nodes {
		walk(node)
		flush()
	}
	return lines
}
