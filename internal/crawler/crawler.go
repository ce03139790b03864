package crawler

import (
	"fmt"
	"net/url"
	"strings"

	colly "github.com/gocolly/colly/v2"

	"eduquiz-platform/internal/extract"
	"eduquiz-platform/internal/logger"
)

// Page is one crawled page reduced to study text.
type Page struct {
	URL   string
	Title string
	Text  string
}

// CrawlSite fetches the start page and follows same-domain links until
// maxPages pages have been collected. Each page becomes one document for the
// ingestion pipeline.
func CrawlSite(startURL string, maxPages int) ([]Page, error) {
	if maxPages <= 0 {
		maxPages = 10
	}

	parsed, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
		startURL = parsed.String()
	}

	c := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.MaxDepth(2),
	)

	var pages []Page

	c.OnRequest(func(r *colly.Request) {
		if len(pages) >= maxPages {
			r.Abort()
		}
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		if len(pages) >= maxPages {
			return
		}
		title := strings.TrimSpace(e.DOM.Find("title").First().Text())
		text := extract.SelectionText(e.DOM)
		if text == "" {
			return
		}
		pages = append(pages, Page{
			URL:   e.Request.URL.String(),
			Title: title,
			Text:  text,
		})
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if len(pages) >= maxPages {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || strings.Contains(link, "#") {
			return
		}
		e.Request.Visit(link)
	})

	c.OnError(func(r *colly.Response, err error) {
		logger.Warn("Crawl request failed", "url", r.Request.URL.String(), "error", err)
	})

	if err := c.Visit(startURL); err != nil {
		return nil, fmt.Errorf("crawl %s: %w", startURL, err)
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("crawl %s: no readable pages found", startURL)
	}
	return pages, nil
}
