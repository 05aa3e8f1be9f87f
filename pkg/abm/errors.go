package abm

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ErrUnauthorized is returned by typed operations when the console keeps
// answering "Unauthorized" after the renewal budget is spent.
var ErrUnauthorized = errors.New("abm: unauthorized")

// TransportError reports a network failure or a non-2xx response.
type TransportError struct {
	Op         Operation
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("abm %s: transport: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("abm %s: HTTP %d: %s", e.Op, e.StatusCode, summarize(e.Body))
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

const maxSummary = 200

// summarize shortens an error body. Gateway error pages are HTML, so their
// visible text is extracted.
func summarize(body string) string {
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "<") {
		if text := htmlText(body); text != "" {
			body = text
		}
	}
	body = strings.Join(strings.Fields(body), " ")
	if len(body) <= maxSummary {
		return body
	}
	// Cut on a rune boundary; console pages are often not ASCII
	cut := maxSummary
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}

// htmlText returns the visible text of an HTML document.
func htmlText(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return ""
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "script", "style", "noscript", "head":
				// The title is read separately
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if title := htmlTitle(root); title != "" && (len(parts) == 0 || parts[0] != title) {
		parts = append([]string{title}, parts...)
	}
	return strings.Join(parts, " ")
}

func htmlTitle(n *html.Node) string {
	if n.Type == html.ElementNode && strings.ToLower(n.Data) == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := htmlTitle(c); title != "" {
			return title
		}
	}
	return ""
}
