// Package retrieval serves marketplace guidance chunks from per-marketplace
// Bleve partitions. Partitions are independent: a query fans out to the
// requested marketplaces and the hits are merged by score.
package retrieval

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	blevesearch "github.com/blevesearch/bleve/v2/search"
	"github.com/rs/zerolog/log"

	contractx "sellerpilot/agent/contract"
	"sellerpilot/pkg/metrics"
)

// Config locates the on-disk partitions and bounds result sizes.
type Config struct {
	IndexDir     string `envconfig:"INDEX_DIR" default:"./data/index"`
	PerMarketTop int    `envconfig:"PER_MARKET_TOP" default:"4"`
	MaxChunks    int    `envconfig:"MAX_CHUNKS" default:"8"`
}

// Engine implements the retriever over a set of Bleve partitions keyed by
// marketplace.
type Engine struct {
	parts        map[contractx.Marketplace]bleve.Index
	perMarketTop int
	maxChunks    int
}

var _ contractx.Retriever = (*Engine)(nil)

// Open opens one partition per known marketplace under cfg.IndexDir,
// creating empty partitions for marketplaces that have none yet.
func Open(cfg Config) (*Engine, error) {
	known := contractx.KnownMarketplaces()
	parts := make(map[contractx.Marketplace]bleve.Index, len(known))
	for _, mk := range known {
		path := filepath.Join(cfg.IndexDir, string(mk))
		idx, err := bleve.Open(path)
		if err != nil {
			idx, err = bleve.New(path, chunkMapping())
			if err != nil {
				closeAll(parts)
				return nil, fmt.Errorf("open partition %s: %w", mk, err)
			}
		}
		parts[mk] = idx
	}
	return New(parts, cfg.PerMarketTop, cfg.MaxChunks), nil
}

// New builds an engine over pre-opened partitions. Tests pass mem-only
// indexes here.
func New(parts map[contractx.Marketplace]bleve.Index, perMarketTop, maxChunks int) *Engine {
	if perMarketTop <= 0 {
		perMarketTop = 4
	}
	if maxChunks <= 0 {
		maxChunks = 8
	}
	return &Engine{parts: parts, perMarketTop: perMarketTop, maxChunks: maxChunks}
}

// Chunk is one indexable guidance document.
type Chunk struct {
	DocID  string `json:"doc_id"`
	Topic  string `json:"topic"`
	Anchor string `json:"anchor"`
	Text   string `json:"text"`
}

// Index adds or replaces a chunk in the marketplace's partition.
func (e *Engine) Index(mk contractx.Marketplace, c Chunk) error {
	idx, ok := e.parts[mk]
	if !ok {
		return fmt.Errorf("%w: no partition for marketplace %q", contractx.ErrInvalidInput, mk)
	}
	key := c.DocID
	if c.Anchor != "" {
		key = c.DocID + "#" + c.Anchor
	}
	return idx.Index(key, c)
}

// Retrieve fans the query out to the requested partitions and merges hits by
// score, deduplicating on (doc id, anchor) and capping the merged list.
func (e *Engine) Retrieve(ctx context.Context, query string, marketplaces []contractx.Marketplace) ([]contractx.RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", contractx.ErrInvalidInput)
	}
	if len(marketplaces) == 0 {
		return nil, fmt.Errorf("%w: no marketplaces requested", contractx.ErrInvalidInput)
	}

	perMarket := make([][]contractx.RetrievedChunk, 0, len(marketplaces))
	for _, mk := range marketplaces {
		idx, ok := e.parts[mk]
		if !ok {
			return nil, fmt.Errorf("%w: no partition for marketplace %q", contractx.ErrInvalidInput, mk)
		}
		hits, err := e.searchPartition(ctx, idx, mk, query)
		if err != nil {
			log.Error().Err(err).Str("marketplace", string(mk)).Msg("partition search failed")
			return nil, fmt.Errorf("%w: %s: %v", contractx.ErrRetrievalUnavailable, mk, err)
		}
		perMarket = append(perMarket, hits)
	}

	merged := mergeByScore(perMarket, e.maxChunks)
	metrics.ObserveRetrieval(len(merged))
	return merged, nil
}

func (e *Engine) searchPartition(ctx context.Context, idx bleve.Index, mk contractx.Marketplace, query string) ([]contractx.RetrievedChunk, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), e.perMarketTop, 0, false)
	req.Fields = []string{"*"}

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	chunks := make([]contractx.RetrievedChunk, 0, len(res.Hits))
	for _, hit := range res.Hits {
		chunks = append(chunks, hitToChunk(mk, hit))
	}
	return chunks, nil
}

func hitToChunk(mk contractx.Marketplace, hit *blevesearch.DocumentMatch) contractx.RetrievedChunk {
	return contractx.RetrievedChunk{
		Marketplace: mk,
		DocID:       stringField(hit.Fields, "doc_id"),
		Topic:       stringField(hit.Fields, "topic"),
		Anchor:      stringField(hit.Fields, "anchor"),
		Text:        stringField(hit.Fields, "text"),
		Score:       hit.Score,
	}
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// mergeByScore interleaves the per-marketplace lists, always taking the
// highest-scored remaining hit, so a cap never starves a marketplace whose
// best hits outrank another's worst.
func mergeByScore(lists [][]contractx.RetrievedChunk, limit int) []contractx.RetrievedChunk {
	type cursor struct{ list, pos int }
	seen := make(map[string]bool)
	merged := make([]contractx.RetrievedChunk, 0, limit)
	cursors := make([]cursor, len(lists))
	for i := range lists {
		cursors[i] = cursor{list: i}
	}

	for len(merged) < limit {
		best := -1
		for i, c := range cursors {
			if c.pos >= len(lists[c.list]) {
				continue
			}
			if best < 0 || lists[c.list][c.pos].Score > lists[cursors[best].list][cursors[best].pos].Score {
				best = i
			}
		}
		if best < 0 {
			break
		}
		chunk := lists[cursors[best].list][cursors[best].pos]
		cursors[best].pos++

		key := string(chunk.Marketplace) + "\x00" + chunk.DocID + "\x00" + chunk.Anchor
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, chunk)
	}
	return merged
}

// Close closes every partition, returning the first error.
func (e *Engine) Close() error {
	var first error
	for mk, idx := range e.parts {
		if err := idx.Close(); err != nil && first == nil {
			first = fmt.Errorf("close partition %s: %w", mk, err)
		}
	}
	return first
}

func chunkMapping() mapping.IndexMapping {
	return bleve.NewIndexMapping()
}

func closeAll(parts map[contractx.Marketplace]bleve.Index) {
	for _, idx := range parts {
		_ = idx.Close()
	}
}
