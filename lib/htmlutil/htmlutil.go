// Package htmlutil holds the small document-query layer shared by the
// registry scrapers: plain-text extraction and sibling walking on top of
// x/net/html nodes, plus text-keyed element lookup on goquery selections.
package htmlutil

import (
	"bytes"
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

// NextElement returns the next sibling of node that is an element,
// skipping text nodes and comments.
func NextElement(node *html.Node) *html.Node {
	if node == nil {
		return nil
	}
	for sib := node.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.ElementNode {
			return sib
		}
	}
	return nil
}

// NextSibling returns the next sibling of node that is either an element or
// a non-empty text node.
func NextSibling(node *html.Node) *html.Node {
	if node == nil {
		return nil
	}
	for sib := node.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.ElementNode {
			return sib
		}
		if sib.Type == html.TextNode && strings.TrimSpace(sib.Data) != "" {
			return sib
		}
	}
	return nil
}

// FindByText selects the first node matching selector whose trimmed text
// content equals text. The selection is empty when nothing matches.
func FindByText(root *goquery.Selection, selector, text string) *goquery.Selection {
	return root.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == text
	}).First()
}
