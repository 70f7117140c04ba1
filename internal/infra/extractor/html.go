package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"webharvest/internal/domain/entity"

	"github.com/PuerkitoBio/goquery"
)

// priceRe pulls an optional leading currency symbol ($, £, €) and a decimal
// amount out of free-form price text such as "$19.99", "£12.50", or
// "1,299.00 EUR"; a trailing currency code such as "EUR" is not recognized,
// so that last example yields the amount with no currency.
var priceRe = regexp.MustCompile(`([$£€])?\s*([0-9][0-9,]*\.?[0-9]*)`)

var currencyBySymbol = map[string]string{
	"$": "USD",
	"£": "GBP",
	"€": "EUR",
}

// HTMLExtractor walks an HTML document with goquery, selecting one element
// per spec.Selectors["container"] match and pulling named fields from
// sub-selectors within each. It serves News, Ecommerce, and Custom sources;
// the field set present in Selectors determines which fields get populated.
type HTMLExtractor struct{}

// Extract implements Extractor.
func (h *HTMLExtractor) Extract(spec *entity.SourceSpec, body []byte) ([]*entity.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, &ExtractError{Source: spec.Name, Err: err}
	}

	containerSel := spec.Selectors["container"]
	var containers *goquery.Selection
	if containerSel != "" {
		containers = doc.Find(containerSel)
	} else {
		containers = doc.Selection
	}

	records := make([]*entity.Record, 0, containers.Length())
	containers.Each(func(_ int, sel *goquery.Selection) {
		rec := h.recordFrom(spec, sel)
		if rec != nil {
			records = append(records, rec)
		}
	})

	return records, nil
}

func (h *HTMLExtractor) recordFrom(spec *entity.SourceSpec, sel *goquery.Selection) *entity.Record {
	rec := entity.NewRecord(spec.Name, spec.URL)

	if s := spec.Selectors["title"]; s != "" {
		rec.Title = collapseWhitespace(textOf(sel, s))
	}
	if s := spec.Selectors["author"]; s != "" {
		rec.Author = collapseWhitespace(textOf(sel, s))
	}
	if s := spec.Selectors["category"]; s != "" {
		rec.Category = collapseWhitespace(textOf(sel, s))
	}
	if s := spec.Selectors["content"]; s != "" {
		rec.Content = collapseWhitespace(textOf(sel, s))
	}
	if s := spec.Selectors["image"]; s != "" {
		rec.ImageURL = attrOf(sel, s, "src")
	}
	if s := spec.Selectors["url"]; s != "" {
		if href := attrOf(sel, s, "href"); href != "" {
			rec.URL = href
		}
	}
	if s := spec.Selectors["price"]; s != "" {
		priceText := collapseWhitespace(textOf(sel, s))
		if priceText != "" {
			if price, currency, ok := parsePrice(priceText); ok {
				rec.Price = &price
				rec.SetMeta("price_text", priceText)
				if currency != "" {
					rec.SetMeta("currency", currency)
				}
			}
		}
	}

	if rec.Title == "" && rec.URL == spec.URL {
		return nil
	}
	return rec
}

// textOf returns the trimmed text of the first match of selector within sel,
// or sel's own text when selector is ".".
func textOf(sel *goquery.Selection, selector string) string {
	if selector == "." {
		return strings.TrimSpace(sel.Text())
	}
	return strings.TrimSpace(sel.Find(selector).First().Text())
}

// attrOf returns the named attribute of the first match of selector, or of
// sel itself when selector is ".".
func attrOf(sel *goquery.Selection, selector, attr string) string {
	target := sel.Find(selector).First()
	if selector == "." {
		target = sel
	}
	val, _ := target.Attr(attr)
	return strings.TrimSpace(val)
}

// collapseWhitespace reduces runs of whitespace to single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parsePrice extracts a numeric amount and its currency symbol from free-form
// text. Returns ok=false when no numeric amount could be found.
func parsePrice(text string) (float64, string, bool) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil || m[2] == "" {
		return 0, "", false
	}
	cleaned := strings.ReplaceAll(m[2], ",", "")
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, "", false
	}
	currency := currencyBySymbol[m[1]]
	return amount, currency, true
}
