package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/menuscout/backend/internal/domain"
)

// genericItemNames are heading-like tokens the model sometimes emits as
// dishes; they are dropped in the cleanup pass.
var genericItemNames = map[string]bool{
	"food":       true,
	"drinks":     true,
	"snacks":     true,
	"promotions": true,
	"games":      true,
}

// minLLMTextChars is the floor below which the raw text is too trivial to be
// worth a model call.
const minLLMTextChars = 100

// defaultChunkChars respects the model's context limit; pages longer than
// this are segmented and extracted chunk by chunk.
const defaultChunkChars = 15000

// LLMExtractor is the fallback extractor used when the structural cascade
// yields nothing.
type LLMExtractor struct {
	generator  domain.MenuGenerator
	chunkChars int
}

// NewLLMExtractor creates the language-model extractor. chunkChars <= 0 uses
// the default.
func NewLLMExtractor(generator domain.MenuGenerator, chunkChars int) *LLMExtractor {
	if chunkChars <= 0 {
		chunkChars = defaultChunkChars
	}
	return &LLMExtractor{generator: generator, chunkChars: chunkChars}
}

// Extract chunks the visible text, extracts each chunk independently, and
// merges the results. A failed chunk is logged and skipped; it never aborts
// the remaining chunks.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (*domain.ExtractionResult, error) {
	text = strings.TrimSpace(text)
	if len(text) < minLLMTextChars {
		return nil, fmt.Errorf("%w: text too short for model extraction", domain.ErrExtractionFailed)
	}

	chunks := ChunkText(text, e.chunkChars)
	rawCount := 0
	var all []domain.MenuSection
	for i, chunk := range chunks {
		sections, err := e.generator.ExtractMenuChunk(ctx, chunk)
		if err != nil {
			log.Printf("[LLM] Chunk %d/%d failed, skipping: %v", i+1, len(chunks), err)
			continue
		}
		rawCount += countItems(sections)
		all = append(all, sections...)
	}

	merged := mergeSections(all)
	merged = dropGenericItems(merged)
	merged = CleanSections(merged)
	if len(merged) == 0 {
		return nil, domain.ErrExtractionFailed
	}

	return &domain.ExtractionResult{
		Sections:          merged,
		Method:            domain.MethodLanguageModel,
		RawCandidateCount: rawCount,
	}, nil
}

// ChunkText splits text into pieces of at most chunkChars, breaking on line
// boundaries where possible so dishes don't straddle chunks.
func ChunkText(text string, chunkChars int) []string {
	if chunkChars <= 0 || len(text) <= chunkChars {
		return []string{text}
	}

	var chunks []string
	for len(text) > chunkChars {
		cut := chunkChars
		if idx := strings.LastIndexByte(text[:chunkChars], '\n'); idx > chunkChars/2 {
			cut = idx
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if strings.TrimSpace(text) != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// mergeSections merges per-chunk sections by case-normalized category name,
// de-duplicating items on (lower-cased name, price). Category order follows
// first appearance; "Uncategorized" is the default bucket.
func mergeSections(sections []domain.MenuSection) []domain.MenuSection {
	type bucket struct {
		order int
		name  string
		items []domain.MenuItem
		seen  map[string]bool
	}

	buckets := make(map[string]*bucket)
	for _, section := range sections {
		name := strings.TrimSpace(section.SectionName)
		if name == "" {
			name = "Uncategorized"
		}
		key := strings.ToLower(name)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{order: len(buckets), name: name, seen: make(map[string]bool)}
			buckets[key] = b
		}
		for _, item := range section.Items {
			dedupeKey := strings.ToLower(strings.TrimSpace(item.Name)) + "|" + priceKey(item.Price)
			if b.seen[dedupeKey] {
				continue
			}
			b.seen[dedupeKey] = true
			b.items = append(b.items, item)
		}
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].order < ordered[j].order })

	out := make([]domain.MenuSection, 0, len(ordered))
	for _, b := range ordered {
		out = append(out, domain.MenuSection{SectionName: b.name, Items: b.items})
	}
	return out
}

func priceKey(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

// dropGenericItems removes items with names of two characters or fewer and
// names on the generic-token blacklist.
func dropGenericItems(sections []domain.MenuSection) []domain.MenuSection {
	var out []domain.MenuSection
	for _, section := range sections {
		var kept []domain.MenuItem
		for _, item := range section.Items {
			name := strings.TrimSpace(item.Name)
			if len(name) <= 2 || genericItemNames[strings.ToLower(name)] {
				continue
			}
			kept = append(kept, item)
		}
		if len(kept) > 0 {
			section.Items = kept
			out = append(out, section)
		}
	}
	return out
}
