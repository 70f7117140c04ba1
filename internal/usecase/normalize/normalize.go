// Package normalize reshapes extracted Records into a consistent field
// layout: aliased field names are promoted to their canonical counterparts,
// and known foreign currencies are converted to a USD shadow value without
// touching the original price. An optional AI pass can further enrich a
// batch, but its failure always falls back to the rule-based result rather
// than propagating.
package normalize

import (
	"context"
	"log/slog"
	"time"

	"webharvest/internal/domain/entity"
	"webharvest/internal/observability/metrics"
)

// fieldAliases maps alternate metadata keys to the canonical Record field
// they should populate when that field is still unset.
var fieldAliases = map[string][]string{
	"price":     {"cost", "price_value", "amount"},
	"image_url": {"img", "thumbnail", "picture"},
	"title":     {"name", "heading"},
}

// currencyRates converts a non-USD price to its USD equivalent. Rates are
// fixed constants, not live exchange rates.
var currencyRates = map[string]float64{
	"GBP": 1.27,
	"EUR": 1.08,
}

// DefaultBatchSize is used when Config.BatchSize is unset.
const DefaultBatchSize = 50

// Config controls Normalizer behavior.
type Config struct {
	BatchSize        int
	AIEnabled        bool
}

// Stats summarizes one Normalize call.
type Stats struct {
	TotalInput     int
	TotalOutput    int
	AIBatchesOK    int
	AIBatchesFailed int
	Degraded       bool
}

// Enricher is the optional AI-assisted batch enrichment hook. A failure from
// Enrich must never abort normalization; Normalizer always falls back to its
// rule-based result for that batch.
type Enricher interface {
	Enrich(ctx context.Context, batch []*entity.Record) ([]*entity.Record, error)
}

// Normalizer applies field-alias promotion and currency conversion to a
// batch of Records, optionally handing batches to an Enricher.
type Normalizer struct {
	cfg      Config
	enricher Enricher
}

// New builds a Normalizer. enricher may be nil, in which case only the
// rule-based pass runs.
func New(cfg Config, enricher Enricher) *Normalizer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Normalizer{cfg: cfg, enricher: enricher}
}

// Normalize applies field renames and currency conversion to every record,
// then optionally hands each cfg.BatchSize-sized chunk to the Enricher.
func (n *Normalizer) Normalize(ctx context.Context, xs []*entity.Record) ([]*entity.Record, Stats) {
	stats := Stats{TotalInput: len(xs)}

	out := make([]*entity.Record, len(xs))
	for i, r := range xs {
		out[i] = applyRules(r)
	}

	if n.cfg.AIEnabled && n.enricher != nil {
		out = n.enrichInBatches(ctx, out, &stats)
	} else if len(out) > 0 {
		metrics.RecordNormalizeEnriched("rule_only")
	}

	stats.TotalOutput = len(out)
	return out, stats
}

func (n *Normalizer) enrichInBatches(ctx context.Context, xs []*entity.Record, stats *Stats) []*entity.Record {
	result := make([]*entity.Record, 0, len(xs))

	for start := 0; start < len(xs); start += n.cfg.BatchSize {
		end := start + n.cfg.BatchSize
		if end > len(xs) {
			end = len(xs)
		}
		batch := xs[start:end]

		enrichStart := time.Now()
		enriched, err := n.enricher.Enrich(ctx, batch)
		metrics.RecordEnrichDuration(time.Since(enrichStart))
		if err != nil {
			slog.Warn("ai batch enrichment failed, keeping rule-based result",
				slog.Int("batch_start", start),
				slog.Int("batch_size", len(batch)),
				slog.String("error", err.Error()))
			stats.AIBatchesFailed++
			stats.Degraded = true
			metrics.RecordNormalizeEnriched("ai_failed")
			result = append(result, batch...)
			continue
		}
		stats.AIBatchesOK++
		metrics.RecordNormalizeEnriched("ai_ok")
		result = append(result, enriched...)
	}

	return result
}

// applyRules promotes aliased metadata fields to their canonical Record
// fields (when unset) and adds a price_usd metadata entry for known foreign
// currencies, leaving Price itself untouched.
func applyRules(r *entity.Record) *entity.Record {
	promoteAliases(r)
	convertCurrency(r)
	return r
}

func promoteAliases(r *entity.Record) {
	for canonical, aliases := range fieldAliases {
		for _, alias := range aliases {
			v, ok := r.Metadata[alias]
			if !ok {
				continue
			}
			applyCanonical(r, canonical, v)
			delete(r.Metadata, alias)
		}
	}
}

func applyCanonical(r *entity.Record, canonical string, v entity.MetaValue) {
	switch canonical {
	case "price":
		if r.Price != nil {
			return
		}
		if f, ok := toFloat(v); ok {
			r.Price = &f
		}
	case "image_url":
		if r.ImageURL != "" {
			return
		}
		if s, ok := v.(string); ok {
			r.ImageURL = s
		}
	case "title":
		if r.Title != "" {
			return
		}
		if s, ok := v.(string); ok {
			r.Title = s
		}
	}
}

func toFloat(v entity.MetaValue) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func convertCurrency(r *entity.Record) {
	if r.Price == nil {
		return
	}
	currency, ok := r.Metadata["currency"].(string)
	if !ok {
		return
	}
	rate, ok := currencyRates[currency]
	if !ok {
		return
	}
	r.SetMeta("price_usd", *r.Price*rate)
}
