package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// HTMLTextFromFile extracts readable text from a stored HTML document,
// decoding legacy charsets before parsing.
func HTMLTextFromFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open html %s: %w", path, err)
	}
	defer f.Close()

	utf8Reader, err := charset.NewReader(f, "text/html")
	if err != nil {
		return "", fmt.Errorf("decode html %s: %w", path, err)
	}

	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return "", fmt.Errorf("parse html %s: %w", path, err)
	}
	return SelectionText(doc.Selection), nil
}

// SelectionText flattens parsed HTML into whitespace-normalized text,
// skipping script, style and navigation chrome.
func SelectionText(sel *goquery.Selection) string {
	sel.Find("script, style, noscript, nav, header, footer").Remove()

	body := sel.Find("body")
	if body.Length() > 0 {
		sel = body
	}
	return strings.Join(strings.Fields(sel.Text()), " ")
}
