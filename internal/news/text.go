package news

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
)

// DefaultLanguage is used when detection has nothing to go on.
const DefaultLanguage = "en"

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// DetectLanguage returns the ISO 639-1 code of text.
func DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return DefaultLanguage
	}
	info := whatlanggo.Detect(text)
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return DefaultLanguage
}
