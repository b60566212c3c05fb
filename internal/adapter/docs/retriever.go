// Package docs implements the document-retrieval collaborator: given
// a query it returns ranked passages with source identifiers.
package docs

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

// Retriever is the document-retrieval collaborator.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]domain.Passage, error)
}

// Document is one indexable reference document.
type Document struct {
	SourceID string
	Text     string
}

// CorpusRetriever ranks an in-memory corpus by term overlap. It keeps
// the core testable and usable offline; a vector backend can replace
// it behind the same interface.
type CorpusRetriever struct {
	mu   sync.RWMutex
	docs []Document
}

var _ Retriever = (*CorpusRetriever)(nil)

// NewCorpusRetriever indexes the given documents.
func NewCorpusRetriever(docs []Document) *CorpusRetriever {
	return &CorpusRetriever{docs: docs}
}

// Add appends documents to the corpus.
func (r *CorpusRetriever) Add(docs ...Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, docs...)
}

// Search scores every document by the fraction of query terms it
// contains and returns the top k non-zero hits, best first.
func (r *CorpusRetriever) Search(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 5
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	passages := make([]domain.Passage, 0, len(r.docs))
	for _, doc := range r.docs {
		lower := strings.ToLower(doc.Text)
		matched := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		passages = append(passages, domain.Passage{
			Text:     doc.Text,
			SourceID: doc.SourceID,
			Score:    float64(matched) / float64(len(terms)),
		})
	}
	sort.SliceStable(passages, func(i, j int) bool { return passages[i].Score > passages[j].Score })
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `.,;:!?"'()[]{}`)
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}
