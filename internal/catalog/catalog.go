// Package catalog provides full-text search over saved listings using Bleve.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/tapeview/internal/models"
)

// SearchOptions optional parameters for catalog search. Nil means use defaults.
type SearchOptions struct {
	// NameBoost multiplies the score contribution of matches in the listing name.
	// Use 1.0 for no boost.
	NameBoost float64
	// Fuzziness enables typo tolerant matching with the given edit distance (1 or 2).
	Fuzziness int
	// Mode restricts hits to listings saved in that mode.
	Mode models.Mode
}

// Catalog indexes saved listings.
type Catalog struct {
	index bleve.Index
}

// Open creates or opens a catalog index at path. If the path exists, the
// existing index is reused.
func Open(path string) (*Catalog, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open catalog index: %w", openErr)
		}
		return &Catalog{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}
	return &Catalog{index: index}, nil
}

// OpenMemory creates a catalog held in memory.
func OpenMemory() (*Catalog, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}
	return &Catalog{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	listing := bleve.NewDocumentMapping()
	// Standard analyzer: listings hold mnemonics and BASIC keywords that must not be stemmed.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	listing.AddFieldMappingsAt("name", text)
	listing.AddFieldMappingsAt("text", text)
	keyword := bleve.NewKeywordFieldMapping()
	listing.AddFieldMappingsAt("id", keyword)
	listing.AddFieldMappingsAt("mode", keyword)
	listing.AddFieldMappingsAt("source", keyword)

	im.AddDocumentMapping("listing", listing)
	im.DefaultType = "listing"
	im.DefaultMapping = listing
	return im
}

// Index adds or replaces a listing.
func (c *Catalog) Index(ctx context.Context, l *models.Listing) error {
	if err := c.index.Index(l.ID, l); err != nil {
		return fmt.Errorf("failed to index listing %s: %w", l.ID, err)
	}
	return nil
}

// Delete removes a listing.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	return c.index.Delete(id)
}

// Count returns the number of indexed listings.
func (c *Catalog) Count() (uint64, error) {
	return c.index.DocCount()
}

// Close closes the index.
func (c *Catalog) Close() error {
	return c.index.Close()
}

// DefaultLimit is used when Search is given a limit that is not positive.
const DefaultLimit = 10

// Search returns up to limit listings matching query in their name or text.
func (c *Catalog) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]models.CatalogHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	nameBoost := 1.0
	fuzziness := 0
	var mode models.Mode
	if opts != nil {
		if opts.NameBoost > 0 {
			nameBoost = opts.NameBoost
		}
		fuzziness = opts.Fuzziness
		mode = opts.Mode
	}

	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}
	nameHits, err := c.searchField(ctx, query, "name", mode, fuzziness, reqSize)
	if err != nil {
		return nil, err
	}
	textHits, err := c.searchField(ctx, query, "text", mode, fuzziness, reqSize)
	if err != nil {
		return nil, err
	}

	// Additive merge: score = name*boost + text.
	merged := make(map[string]*models.CatalogHit)
	for _, h := range nameHits {
		h.Score *= nameBoost
		merged[h.ID] = &models.CatalogHit{ID: h.ID, Name: h.Name, Score: h.Score}
	}
	for _, h := range textHits {
		if m, ok := merged[h.ID]; ok {
			m.Score += h.Score
			continue
		}
		merged[h.ID] = &models.CatalogHit{ID: h.ID, Name: h.Name, Score: h.Score}
	}

	out := make([]models.CatalogHit, 0, len(merged))
	for _, h := range merged {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *Catalog) searchField(ctx context.Context, query, field string, mode models.Mode, fuzziness, size int) ([]models.CatalogHit, error) {
	q := buildQuery(query, field, fuzziness)
	if mode != "" {
		mq := bleve.NewTermQuery(string(mode))
		mq.SetField("mode")
		q = bleve.NewConjunctionQuery(q, mq)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = size
	req.Fields = []string{"name"}
	results, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("catalog %s search failed: %w", field, err)
	}
	hits := make([]models.CatalogHit, len(results.Hits))
	for i, hit := range results.Hits {
		name, _ := hit.Fields["name"].(string)
		hits[i] = models.CatalogHit{ID: hit.ID, Name: name, Score: hit.Score}
	}
	return hits, nil
}

// buildQuery returns a match query on field, or a disjunction of fuzzy term
// queries when fuzziness is positive.
func buildQuery(query, field string, fuzziness int) blevequery.Query {
	terms := strings.Fields(strings.ToLower(query))
	if fuzziness <= 0 || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}
