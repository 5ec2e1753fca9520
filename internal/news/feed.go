// Package news ingests RSS feeds into the smart_news table with bias,
// summary and claim enrichment.
package news

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// Feed is a parsed RSS or Atom document.
type Feed struct {
	Title string
	Items []Item
}

// Item is one feed entry.
type Item struct {
	Title       string
	Link        string
	Summary     string
	Description string
	Published   *time.Time
}

type rssDocument struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Summary     string `xml:"summary"`
	PubDate     string `xml:"pubDate"`
}

type atomDocument struct {
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Content string `xml:"content"`
	Updated string `xml:"updated"`
	Links   []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
}

// ParseFeed decodes an RSS 2.0 or Atom document in any declared charset.
func ParseFeed(r io.Reader) (*Feed, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	root, err := rootElement(data)
	if err != nil {
		return nil, err
	}

	switch root {
	case "rss":
		var doc rssDocument
		if err := decode(data, &doc); err != nil {
			return nil, err
		}
		feed := &Feed{Title: strings.TrimSpace(doc.Channel.Title)}
		for _, it := range doc.Channel.Items {
			feed.Items = append(feed.Items, Item{
				Title:       strings.TrimSpace(it.Title),
				Link:        strings.TrimSpace(it.Link),
				Summary:     strings.TrimSpace(it.Summary),
				Description: strings.TrimSpace(it.Description),
				Published:   parseDate(it.PubDate),
			})
		}
		return feed, nil
	case "feed":
		var doc atomDocument
		if err := decode(data, &doc); err != nil {
			return nil, err
		}
		feed := &Feed{Title: strings.TrimSpace(doc.Title)}
		for _, e := range doc.Entries {
			feed.Items = append(feed.Items, Item{
				Title:       strings.TrimSpace(e.Title),
				Link:        atomLink(e),
				Summary:     strings.TrimSpace(e.Summary),
				Description: strings.TrimSpace(e.Content),
				Published:   parseDate(e.Updated),
			})
		}
		return feed, nil
	default:
		return nil, fmt.Errorf("parse feed: unsupported root element %q", root)
	}
}

func newDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false
	return dec
}

func rootElement(data []byte) (string, error) {
	dec := newDecoder(data)
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("parse feed: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func decode(data []byte, v interface{}) error {
	if err := newDecoder(data).Decode(v); err != nil {
		return fmt.Errorf("parse feed: %w", err)
	}
	return nil
}

func atomLink(e atomEntry) string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(e.Links) > 0 {
		return strings.TrimSpace(e.Links[0].Href)
	}
	return ""
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Fetcher downloads feeds over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a Fetcher. A nil client gets a 30 second timeout.
func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client, userAgent: userAgent}
}

// Fetch downloads and parses the feed at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: HTTP %d", url, resp.StatusCode)
	}
	return ParseFeed(resp.Body)
}
