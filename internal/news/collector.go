package news

import (
	"context"
	"fmt"
	"time"

	"truthscan/internal/analysis"
	"truthscan/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Enricher is the LLM layer used to annotate articles.
type Enricher interface {
	DetectBias(ctx context.Context, text string) (analysis.Bias, error)
	Summarize(ctx context.Context, text string) (string, error)
	ExtractNewsClaims(ctx context.Context, text string) ([]analysis.ExtractedClaim, error)
}

// FeedSource returns parsed feeds.
type FeedSource interface {
	Fetch(ctx context.Context, url string) (*Feed, error)
}

// CollectorConfig tunes a sweep.
type CollectorConfig struct {
	Feeds          []string
	EntriesPerFeed int
	EntryDelay     time.Duration
}

// SweepStats summarizes one pass over the feeds.
type SweepStats struct {
	Feeds      int `json:"feeds"`
	FeedErrors int `json:"feed_errors"`
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Claims     int `json:"claims"`
}

// Collector pulls feeds and stores enriched articles.
type Collector struct {
	db       *gorm.DB
	source   FeedSource
	enricher Enricher
	cfg      CollectorConfig
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewCollector creates a Collector.
func NewCollector(db *gorm.DB, source FeedSource, enricher Enricher, cfg CollectorConfig, logger zerolog.Logger) *Collector {
	if cfg.EntriesPerFeed <= 0 {
		cfg.EntriesPerFeed = 4
	}
	return &Collector{
		db:       db,
		source:   source,
		enricher: enricher,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sweep processes every configured feed once. Feed failures are counted
// and logged; only cancellation stops the sweep early.
func (c *Collector) Sweep(ctx context.Context) (SweepStats, error) {
	stats := SweepStats{Feeds: len(c.cfg.Feeds)}
	c.logger.Info().Int("feeds", len(c.cfg.Feeds)).Msg("🌍 Fetching news feeds")

	for _, url := range c.cfg.Feeds {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := c.sweepFeed(ctx, url, &stats); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.FeedErrors++
			c.logger.Warn().Err(err).Str("feed", url).Msg("⚠️ Feed error")
		}
	}

	c.logger.Info().
		Int("added", stats.Added).
		Int("duplicates", stats.Duplicates).
		Int("claims", stats.Claims).
		Int("feed_errors", stats.FeedErrors).
		Msg("✅ News sweep complete")
	return stats, nil
}

func (c *Collector) sweepFeed(ctx context.Context, url string, stats *SweepStats) error {
	feed, err := c.source.Fetch(ctx, url)
	if err != nil {
		return err
	}
	if len(feed.Items) == 0 {
		c.logger.Warn().Str("feed", url).Msg("⚠️ No entries found")
		return nil
	}

	items := feed.Items
	if len(items) > c.cfg.EntriesPerFeed {
		items = items[:c.cfg.EntriesPerFeed]
	}
	sourceName := feed.Title
	if sourceName == "" {
		sourceName = "Unknown Source"
	}

	for _, item := range items {
		if item.Title == "" || item.Link == "" {
			stats.Skipped++
			continue
		}
		exists, err := c.exists(ctx, item.Link)
		if err != nil {
			return err
		}
		if exists {
			stats.Duplicates++
			continue
		}

		claims, err := c.ingest(ctx, sourceName, item)
		if err != nil {
			return err
		}
		stats.Added++
		stats.Claims += claims

		if err := c.sleep(ctx, c.cfg.EntryDelay); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) exists(ctx context.Context, sourceURL string) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).Model(&models.NewsArticle{}).Where("source_url = ?", sourceURL).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check duplicate %s: %w", sourceURL, err)
	}
	return count > 0, nil
}

func (c *Collector) ingest(ctx context.Context, sourceName string, item Item) (int, error) {
	title := StripHTML(item.Title)
	summary := StripHTML(item.Summary)
	description := StripHTML(item.Description)
	if description == "" {
		description = summary
	}
	if description == "" {
		description = c.pageBody(ctx, item.Link)
	}
	body := firstNonEmpty(summary, description, title)

	language := DetectLanguage(title + " " + summary)

	bias, err := c.enricher.DetectBias(ctx, body)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", item.Link).Msg("⚠️ Bias detection failed, using fallback")
	}
	summarized, err := c.enricher.Summarize(ctx, body)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", item.Link).Msg("⚠️ Summarizer failure")
	}

	now := time.Now().UTC()
	published := item.Published
	if published == nil {
		published = &now
	}
	article := models.NewsArticle{
		Title:          title,
		Summary:        summarized,
		SourceName:     sourceName,
		SourceURL:      item.Link,
		Bias:           bias.Label,
		BiasConfidence: bias.Confidence,
		TrustScore:     0.5,
		Language:       language,
		PublishedAt:    published,
	}
	if err := c.db.WithContext(ctx).Create(&article).Error; err != nil {
		return 0, fmt.Errorf("insert article %s: %w", item.Link, err)
	}
	c.logger.Info().Str("title", truncateTitle(title)).Msg("📰 Added article")

	extracted, err := c.enricher.ExtractNewsClaims(ctx, body)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", item.Link).Msg("⚠️ Claim extraction failed")
		return 0, nil
	}
	rows := make([]models.NewsClaim, 0, len(extracted))
	for _, claim := range extracted {
		if claim.ClaimText == "" {
			continue
		}
		rows = append(rows, models.NewsClaim{
			ArticleID: article.ID,
			ClaimText: claim.ClaimText,
			ClaimType: claim.ClaimType,
			Context:   claim.Context,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := c.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("insert claims for %s: %w", item.Link, err)
	}
	return len(rows), nil
}

// pageBody reads the article page when the feed source can fetch pages.
// Failures leave the item with its title only.
func (c *Collector) pageBody(ctx context.Context, url string) string {
	pages, ok := c.source.(PageReader)
	if !ok {
		return ""
	}
	page, err := pages.ReadPage(ctx, url)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("⚠️ Article page unavailable")
		return ""
	}
	return page.Body()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncateTitle(s string) string {
	r := []rune(s)
	if len(r) > 60 {
		return string(r[:60])
	}
	return s
}
