package extractor

import (
	"strings"

	"webharvest/internal/domain/entity"

	"github.com/tidwall/gjson"
)

// JSONExtractor walks a JSON body with gjson, iterating the array at
// spec.Selectors["container"] and pulling named fields from dotted paths
// relative to each array element. It serves Social sources, whose payloads
// are API responses rather than HTML pages.
type JSONExtractor struct{}

// Extract implements Extractor.
func (j *JSONExtractor) Extract(spec *entity.SourceSpec, body []byte) ([]*entity.Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, &ExtractError{Source: spec.Name, Err: errNotValidJSON}
	}

	root := gjson.ParseBytes(body)
	containerPath := spec.Selectors["container"]

	var items gjson.Result
	if containerPath != "" {
		items = root.Get(containerPath)
	} else {
		items = root
	}

	if !items.IsArray() {
		return []*entity.Record{}, nil
	}

	results := items.Array()
	records := make([]*entity.Record, 0, len(results))
	for _, item := range results {
		rec := j.recordFrom(spec, item)
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (j *JSONExtractor) recordFrom(spec *entity.SourceSpec, item gjson.Result) *entity.Record {
	rec := entity.NewRecord(spec.Name, spec.URL)

	if s := spec.Selectors["title"]; s != "" {
		rec.Title = collapseWhitespace(item.Get(s).String())
	}
	if s := spec.Selectors["author"]; s != "" {
		rec.Author = collapseWhitespace(item.Get(s).String())
	}
	if s := spec.Selectors["category"]; s != "" {
		rec.Category = collapseWhitespace(item.Get(s).String())
	}
	if s := spec.Selectors["content"]; s != "" {
		rec.Content = collapseWhitespace(item.Get(s).String())
	}
	if s := spec.Selectors["image"]; s != "" {
		rec.ImageURL = strings.TrimSpace(item.Get(s).String())
	}
	if s := spec.Selectors["url"]; s != "" {
		if u := strings.TrimSpace(item.Get(s).String()); u != "" {
			rec.URL = u
		}
	}
	if s := spec.Selectors["price"]; s != "" {
		priceResult := item.Get(s)
		if priceResult.Exists() {
			price := priceResult.Float()
			rec.Price = &price
		}
	}

	for key, path := range spec.Selectors {
		if isKnownField(key) {
			continue
		}
		if v := item.Get(path); v.Exists() {
			rec.SetMeta(key, v.Value())
		}
	}

	if rec.Title == "" {
		return nil
	}
	return rec
}

func isKnownField(key string) bool {
	switch key {
	case "container", "title", "author", "category", "content", "image", "url", "price":
		return true
	}
	return false
}

type jsonExtractError string

func (e jsonExtractError) Error() string { return string(e) }

const errNotValidJSON = jsonExtractError("body is not valid JSON")
