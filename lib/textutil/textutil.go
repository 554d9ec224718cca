package textutil

import (
	"regexp"
	"registry-backend/lib/htmlutil"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StripTags extracts the plain text of an HTML fragment. Search results from
// the commercial registry wrap matched substrings in highlight markup; this
// runs the fragment through a real parse rather than a regex so entities and
// nested tags come out right.
func StripTags(fragment string) string {
	if !strings.ContainsRune(fragment, '<') {
		return fragment
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return fragment
	}
	var out strings.Builder
	for _, n := range nodes {
		out.WriteString(htmlutil.GetText(n))
	}
	return out.String()
}

var (
	forbiddenRunes  = regexp.MustCompile(`[&/\\#,+()$~%.'":*?<>{}]`)
	underscoreRuns  = regexp.MustCompile(`_+`)
	edgeUnderscores = regexp.MustCompile(`^_+|_+$`)
)

// SanitizeName makes a string safe for use as a note file name.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = forbiddenRunes.ReplaceAllString(name, "_")
	name = edgeUnderscores.ReplaceAllString(name, "")
	return underscoreRuns.ReplaceAllString(name, "_")
}
