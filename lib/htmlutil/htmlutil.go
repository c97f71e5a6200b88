package htmlutil

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// WrappedText returns the text of the first `tag` element inside sel, or the
// text of sel itself when there is none. The portal wraps dates in <nobr>.
func WrappedText(sel *goquery.Selection, tag string) string {
	inner := sel.Find(tag).First()
	if inner.Length() > 0 {
		return strings.TrimSpace(inner.Text())
	}
	return strings.TrimSpace(sel.Text())
}

// SplitBreaks returns the text of every line of sel, where lines are
// separated by <br> elements.
func SplitBreaks(sel *goquery.Selection) []string {
	var lines []string
	var current bytes.Buffer
	for _, n := range sel.Nodes {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode && child.Data == "br" {
				lines = append(lines, current.String())
				current.Reset()
				continue
			}
			getTextRecursive(child, &current)
		}
	}
	return append(lines, current.String())
}

// TimeRange finds the first "H:MM-H:MM" span in text.
var TimeRange = regexp.MustCompile(`\d{1,2}:\d{2}\s*-\s*\d{1,2}:\d{2}`)
