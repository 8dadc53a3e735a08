// Package index maintains the in-memory relevance index over profile
// text fields. It is rebuilt from the profile store on boot and updated
// synchronously on every profile mutation.
//
// Score convention: higher score = more relevant (bleve's tf-idf family).
// Callers must only rely on ordering, never on score magnitudes.
package index

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// ErrNoTerms signals that sanitization left no usable terms. Distinct
// from an empty result set so callers can fall back to browse mode.
var ErrNoTerms = errors.New("query contains no indexable terms")

// Document is the indexed view of a profile.
type Document struct {
	Name       string `json:"name"`
	Interests  string `json:"interests"`
	LookingFor string `json:"looking_for"`
	Location   string `json:"location"`
	Bio        string `json:"bio"`
}

// Hit is one ranked match.
type Hit struct {
	Handle string
	Score  float64
}

// Index wraps a memory-only bleve index keyed by profile handle.
type Index struct {
	idx bleve.Index
}

func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx}, nil
}

// Index upserts the document for a profile handle.
func (i *Index) Index(handle string, doc Document) error {
	return i.idx.Index(handle, doc)
}

// Remove deletes a profile from the index. Removing an absent handle is
// a no-op.
func (i *Index) Remove(handle string) error {
	return i.idx.Delete(handle)
}

// Rebuild re-indexes the full corpus in one batch. Idempotent: indexing
// a handle again replaces its document. Small corpora (thousands of
// profiles) rebuild in seconds.
func (i *Index) Rebuild(docs map[string]Document) error {
	batch := i.idx.NewBatch()
	for handle, doc := range docs {
		if err := batch.Index(handle, doc); err != nil {
			return err
		}
	}
	return i.idx.Batch(batch)
}

// Query runs a disjunctive match over the sanitized term set and returns
// every match in relevance order. Callers re-partition and paginate, so
// the full ranked list is the contract; corpus size keeps this cheap.
func (i *Index) Query(ctx context.Context, terms []string) ([]Hit, error) {
	if len(terms) == 0 {
		return nil, ErrNoTerms
	}

	disjuncts := make([]query.Query, 0, len(terms))
	for _, t := range terms {
		disjuncts = append(disjuncts, bleve.NewMatchQuery(t))
	}
	q := bleve.NewDisjunctionQuery(disjuncts...)

	// First pass gets the match count, second fetches the full ranked
	// list.
	countReq := bleve.NewSearchRequestOptions(q, 0, 0, false)
	countRes, err := i.idx.SearchInContext(ctx, countReq)
	if err != nil {
		return nil, err
	}
	if countRes.Total == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(q, int(countRes.Total), 0, false)
	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{Handle: h.ID, Score: h.Score})
	}
	return hits, nil
}

// SanitizeTerms flattens free text into index terms: split on whitespace
// and commas, strip every rune that is not alphanumeric or underscore,
// drop empties. Returns nil when nothing survives.
func SanitizeTerms(parts ...string) []string {
	var terms []string
	for _, part := range parts {
		part = strings.ReplaceAll(part, ",", " ")
		for _, raw := range strings.Fields(part) {
			var b strings.Builder
			for _, r := range raw {
				if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
					b.WriteRune(r)
				}
			}
			if b.Len() > 0 {
				terms = append(terms, b.String())
			}
		}
	}
	return terms
}
