package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"webharvest/internal/domain/entity"
)

// RecordEnricher adapts Client into normalize.Enricher: it asks Claude to
// fill in missing title/category fields and a one-sentence summary (stored as
// Metadata["ai_summary"]) for a batch of Records, and applies only the fields
// the model actually returned, leaving everything else (including Content,
// and any record the model omits) untouched.
type RecordEnricher struct {
	ai Completer
}

// NewRecordEnricher builds a RecordEnricher over aiClient.
func NewRecordEnricher(aiClient Completer) *RecordEnricher {
	return &RecordEnricher{ai: aiClient}
}

// Enrich fills in missing fields for batch. If the client is disabled or the
// model response cannot be parsed, Enrich returns the original batch
// unchanged alongside the error so the caller's rule-based result survives.
func (e *RecordEnricher) Enrich(ctx context.Context, batch []*entity.Record) ([]*entity.Record, error) {
	if !e.ai.Enabled() {
		return batch, ErrDisabled
	}
	if len(batch) == 0 {
		return batch, nil
	}

	response, err := e.ai.Complete(ctx, buildEnrichPrompt(batch))
	if err != nil {
		return batch, fmt.Errorf("enrich batch: %w", err)
	}

	patches, err := parseEnrichResponse(response)
	if err != nil {
		return batch, fmt.Errorf("parse enrich response: %w", err)
	}

	byID := make(map[string]*entity.Record, len(batch))
	for _, r := range batch {
		byID[r.ID] = r
	}
	for _, p := range patches {
		r, ok := byID[p.ID]
		if !ok {
			continue
		}
		applyPatch(r, p)
	}
	return batch, nil
}

type enrichPatch struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

func applyPatch(r *entity.Record, p enrichPatch) {
	if r.Title == "" && p.Title != "" {
		r.Title = p.Title
	}
	if r.Category == "" && p.Category != "" {
		r.Category = p.Category
	}
	if p.Summary != "" {
		r.SetMeta("ai_summary", p.Summary)
	}
}

func buildEnrichPrompt(batch []*entity.Record) string {
	var sb strings.Builder
	sb.WriteString(`You are cleaning up a batch of harvested records. For each record with a
missing title or category, infer one from its content; otherwise leave it
out of your response. Respond with ONLY a JSON array (no prose, no markdown
fences) of objects shaped like {"id": "<record id>", "title": "<optional>",
"category": "<optional>", "summary": "<optional one-sentence summary>"}.

Records:
`)
	for _, r := range batch {
		content := r.Content
		if len(content) > 500 {
			content = content[:500]
		}
		fmt.Fprintf(&sb, "- id=%s title=%q category=%q content=%q\n", r.ID, r.Title, r.Category, content)
	}
	return sb.String()
}

func parseEnrichResponse(response string) ([]enrichPatch, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var patches []enrichPatch
	if err := json.Unmarshal([]byte(cleaned), &patches); err != nil {
		return nil, err
	}
	return patches, nil
}
