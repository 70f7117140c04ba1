package fetcher

import (
	"bytes"
	"fmt"
	"io"
	"net/url"

	"github.com/go-shiori/go-readability"
)

// ExtractReadableText runs Mozilla's Readability algorithm over a fetched
// HTML page and returns its clean article text, discarding navigation,
// ads, and other boilerplate. It is used to enhance News records whose
// selector-driven Content came back empty: the listing page's container
// rarely carries the full article body, only a teaser.
func ExtractReadableText(body []byte, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = nil // Readability can work without a base URL
	}

	article, err := readability.FromReader(io.NopCloser(bytes.NewReader(body)), parsed)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	if article.TextContent != "" {
		return article.TextContent, nil
	}
	if article.Content != "" {
		return article.Content, nil
	}
	return "", fmt.Errorf("readability: no readable content found for %s", pageURL)
}
