package extractor

import (
	"bytes"
	"strings"

	"github.com/mmcdole/gofeed"

	"webharvest/internal/domain/entity"
)

// RSSExtractor parses an Atom/RSS feed body into one Record per item. It
// serves any source configured with Format: rss, whatever its Kind, where the feed's own
// structure supplies field names instead of a Selectors map.
type RSSExtractor struct{}

// Extract implements Extractor.
func (r *RSSExtractor) Extract(spec *entity.SourceSpec, body []byte) ([]*entity.Record, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ExtractError{Source: spec.Name, Err: err}
	}

	records := make([]*entity.Record, 0, len(feed.Items))
	for _, item := range feed.Items {
		rec := entity.NewRecord(spec.Name, itemURL(item, spec.URL))
		rec.Title = strings.TrimSpace(item.Title)
		rec.Content = strings.TrimSpace(firstNonEmpty(item.Content, item.Description))
		if item.Author != nil {
			rec.Author = strings.TrimSpace(item.Author.Name)
		} else if len(item.Authors) > 0 {
			rec.Author = strings.TrimSpace(item.Authors[0].Name)
		}
		if len(item.Categories) > 0 {
			rec.Category = item.Categories[0]
		}
		if item.Image != nil {
			rec.ImageURL = item.Image.URL
		}
		if item.PublishedParsed != nil {
			rec.Timestamp = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			rec.Timestamp = *item.UpdatedParsed
		}
		if item.GUID != "" {
			rec.SetMeta("guid", item.GUID)
		}
		records = append(records, rec)
	}
	return records, nil
}

func itemURL(item *gofeed.Item, fallback string) string {
	if item.Link != "" {
		return item.Link
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
