package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// maxPageBytes caps how much of an article page is read.
const maxPageBytes = 4 << 20

// Page is what an article's own HTML says about it.
type Page struct {
	Title       string
	Description string
	Author      string
	SiteName    string
	Text        string
}

// PageReader fetches article pages. Feed sources that also implement it
// are used to fill in items whose feed entry carries no summary.
type PageReader interface {
	ReadPage(ctx context.Context, url string) (*Page, error)
}

// ReadPage downloads url and extracts its Open Graph, JSON-LD and meta fields.
func (f *Fetcher) ReadPage(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build page request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page %s: HTTP %d", url, resp.StatusCode)
	}
	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode page %s: %w", url, err)
	}
	return ParsePage(body)
}

// ParsePage extracts page metadata. Open Graph wins over JSON-LD, which wins
// over plain meta tags and the <title> element.
func ParsePage(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	page := &Page{}
	ld := jsonLDArticle(doc)

	page.Title = firstNonEmpty(metaContent(doc, "property", "og:title"), ld.Headline, clean(doc.Find("title").First().Text()))
	page.Description = firstNonEmpty(metaContent(doc, "property", "og:description"), ld.Description, metaContent(doc, "name", "description"))
	page.Author = firstNonEmpty(metaContent(doc, "name", "author"), metaContent(doc, "property", "article:author"), ld.author())
	page.SiteName = firstNonEmpty(metaContent(doc, "property", "og:site_name"), ld.Publisher.Name)

	var paragraphs []string
	scope := doc.Find("article")
	if scope.Length() == 0 {
		scope = doc.Find("body")
	}
	scope.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := clean(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	page.Text = strings.Join(paragraphs, "\n")
	return page, nil
}

// Body is the best text to enrich: the description, else the article text.
func (p *Page) Body() string {
	if p == nil {
		return ""
	}
	return firstNonEmpty(clean(p.Description), truncateRunes(p.Text, 4000))
}

type ldArticle struct {
	Type        interface{}     `json:"@type"`
	Headline    string          `json:"headline"`
	Description string          `json:"description"`
	Author      json.RawMessage `json:"author"`
	Publisher   struct {
		Name string `json:"name"`
	} `json:"publisher"`
}

func (a ldArticle) author() string {
	if len(a.Author) == 0 {
		return ""
	}
	var one struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(a.Author, &one) == nil && one.Name != "" {
		return one.Name
	}
	var many []struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(a.Author, &many) == nil && len(many) > 0 {
		return many[0].Name
	}
	var name string
	if json.Unmarshal(a.Author, &name) == nil {
		return name
	}
	return ""
}

func (a ldArticle) isArticle() bool {
	switch t := a.Type.(type) {
	case string:
		return strings.HasSuffix(t, "Article")
	case []interface{}:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.HasSuffix(s, "Article") {
				return true
			}
		}
	}
	return false
}

// jsonLDArticle returns the first Article-like object among the page's
// JSON-LD scripts, looking inside top-level arrays and @graph.
func jsonLDArticle(doc *goquery.Document) ldArticle {
	var found ldArticle
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := []byte(strings.TrimSpace(s.Text()))
		var candidates []ldArticle
		var graph struct {
			Graph []ldArticle `json:"@graph"`
		}
		var single ldArticle
		switch {
		case json.Unmarshal(raw, &candidates) == nil:
		case json.Unmarshal(raw, &graph) == nil && len(graph.Graph) > 0:
			candidates = graph.Graph
		case json.Unmarshal(raw, &single) == nil:
			candidates = []ldArticle{single}
		}
		for _, c := range candidates {
			if c.isArticle() {
				found = c
				return false
			}
		}
		return true
	})
	return found
}

func metaContent(doc *goquery.Document, attr, key string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[%s=%q]`, attr, key)).First().Attr("content")
	return clean(content)
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
