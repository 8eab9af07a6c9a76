package dom

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// BoxAttr is written on every element by live pages before a snapshot is
// taken. Its value is the rendered size as "WxH" in CSS pixels.
const BoxAttr = "data-ms-box"

// Document is a parsed snapshot of a page. It is only valid for the
// duration of the QueryFunc it was handed to.
type Document struct {
	doc *goquery.Document
}

// NewDocument parses HTML from r.
func NewDocument(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// NewDocumentFromString parses an HTML string.
func NewDocumentFromString(s string) (*Document, error) {
	return NewDocument(strings.NewReader(s))
}

// Root returns the document as a selection.
func (d *Document) Root() *goquery.Selection {
	return d.doc.Selection
}

// HTML renders the document back to markup.
func (d *Document) HTML() (string, error) {
	return goquery.OuterHtml(d.doc.Selection)
}

// Compile checks that pattern is a valid CSS selector group.
func Compile(pattern string) (cascadia.Selector, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidSelector)
	}
	sel, err := cascadia.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSelector, pattern, err)
	}
	return sel, nil
}

// Query returns every element in the document matching pattern.
func (d *Document) Query(pattern string) (*goquery.Selection, error) {
	return QueryIn(d.doc.Selection, pattern)
}

// Count returns the number of elements matching pattern.
func (d *Document) Count(pattern string) (int, error) {
	s, err := d.Query(pattern)
	if err != nil {
		return 0, err
	}
	return s.Length(), nil
}

// Elements returns every element under body in document order.
func (d *Document) Elements() *goquery.Selection {
	return d.doc.Find("body *")
}

// QueryIn returns the descendants of s matching pattern.
func QueryIn(s *goquery.Selection, pattern string) (*goquery.Selection, error) {
	sel, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	return s.FindMatcher(sel), nil
}

// ClassName returns the raw class attribute of the first element in s.
func ClassName(s *goquery.Selection) string {
	c, _ := s.Attr("class")
	return c
}

// ClassList returns the individual class tokens of the first element in s.
func ClassList(s *goquery.Selection) []string {
	return strings.Fields(ClassName(s))
}

// TagName returns the lower-case tag of the first element in s.
func TagName(s *goquery.Selection) string {
	return goquery.NodeName(s)
}

// Box is the rendered size of an element. Known is false when the
// document carries no geometry (static fetches, fixtures without
// annotations).
type Box struct {
	Width  float64
	Height float64
	Known  bool
}

// Exceeds reports whether the box is strictly larger than w×h. Unknown
// boxes always pass so that geometry-free documents are not filtered out.
func (b Box) Exceeds(w, h float64) bool {
	if !b.Known {
		return true
	}
	return b.Width > w && b.Height > h
}

// BoxOf reads the rendered size of the first element in s.
func BoxOf(s *goquery.Selection) Box {
	v, ok := s.Attr(BoxAttr)
	if !ok {
		return Box{}
	}
	ws, hs, ok := strings.Cut(v, "x")
	if !ok {
		return Box{}
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(ws), 64)
	if err != nil {
		return Box{}
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(hs), 64)
	if err != nil {
		return Box{}
	}
	return Box{Width: w, Height: h, Known: true}
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "details": true, "dialog": true, "div": true,
	"dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "summary": true,
	"table": true, "tr": true, "ul": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"head": true, "iframe": true, "svg": true,
}

// InnerText approximates the browser's innerText for the first element
// in s: block elements start new lines, whitespace collapses within a
// line and empty lines are dropped.
func InnerText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	var (
		lines []string
		cur   strings.Builder
	)
	flush := func() {
		if line := strings.Join(strings.Fields(cur.String()), " "); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipTags[n.Data] || hidden(n) {
				return
			}
		}
		block := n.Type == html.ElementNode && blockTags[n.Data]
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		} else if n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th") {
			cur.WriteByte(' ')
		}
	}
	walk(s.Nodes[0])
	flush()
	return strings.Join(lines, "\n")
}

// Text is InnerText with line breaks folded into spaces.
func Text(s *goquery.Selection) string {
	return strings.ReplaceAll(InnerText(s), "\n", " ")
}

// shortTextNodes bounds how many nodes ShortText visits.
const shortTextNodes = 512

// ShortText is Text for elements whose text runs to at most limit runes.
// The walk stops as soon as the subtree is known to be longer, so the
// cost is bounded by limit rather than by the size of the subtree.
func ShortText(s *goquery.Selection, limit int) (string, bool) {
	if s.Length() == 0 {
		return "", true
	}
	var (
		runes, nodes int
		over         bool
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if over {
			return
		}
		if nodes++; nodes > shortTextNodes {
			over = true
			return
		}
		switch n.Type {
		case html.TextNode:
			for _, r := range n.Data {
				if unicode.IsSpace(r) {
					continue
				}
				if runes++; runes > limit {
					over = true
					return
				}
			}
			return
		case html.ElementNode:
			if skipTags[n.Data] || hidden(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(s.Nodes[0])
	if over {
		return "", false
	}
	t := Text(s)
	return t, utf8.RuneCountInString(t) <= limit
}

func hidden(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "style":
			st := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
			if strings.Contains(st, "display:none") {
				return true
			}
		}
	}
	return false
}
