package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

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

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText collapses scraped label text into a single printable line.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

var (
	nonIdentifier = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// Identifier normalizes a scraped label ("My Student VUE", "Grade Book")
// into a stable snake_case key for lookups.
func Identifier(s string) string {
	s = nonIdentifier.ReplaceAllString(s, "_")
	s = camelBoundary.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(s)
}

// Form is the first <form> of a page along with every <input> name/value
// pair on the page, the shape an auto-submitting interstitial carries.
type Form struct {
	Action string
	Method string
	Values url.Values
}

// ParseForm extracts the first form of doc. The method defaults to GET
// like a browser would.
func ParseForm(doc *goquery.Document) (Form, bool) {
	formSel := doc.Find("form").First()
	if formSel.Length() == 0 {
		return Form{}, false
	}

	form := Form{
		Action: formSel.AttrOr("action", ""),
		Method: strings.ToUpper(formSel.AttrOr("method", "GET")),
		Values: url.Values{},
	}
	doc.Find("input").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}
		form.Values.Set(name, input.AttrOr("value", ""))
	})
	return form, true
}
