// Package archive provides full-text search over the stories of sent digests.
package archive

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"meridian/internal/core"
)

// Section names used in indexed documents
const (
	SectionBanking = "banking"
	SectionAI      = "ai"
)

// Index wraps an in-memory Bleve index of digest stories
type Index struct {
	index bleve.Index
}

// StoryDocument is one indexed story
type StoryDocument struct {
	ID       string
	Date     string
	Section  string
	Title    string
	Summary  string
	Impact   string
	URL      string
	DigestID string
}

// Hit is a matching story
type Hit struct {
	Date    string  `json:"date"`
	Section string  `json:"section"`
	Title   string  `json:"title"`
	URL     string  `json:"sourceUrl"`
	Score   float64 `json:"score"`
}

// NewIndex creates an empty in-memory index
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{index: idx}, nil
}

// buildIndexMapping analyzes story text with the English analyzer, for
// documents and queries alike, and keeps dates, sections and URLs as exact
// keywords.
func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Title", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Summary", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Impact", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Date", keywordField())
	docMapping.AddFieldMappingsAt("Section", keywordField())
	docMapping.AddFieldMappingsAt("URL", keywordField())
	docMapping.AddFieldMappingsAt("DigestID", keywordField())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

func keywordField() *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = "keyword"
	fm.IncludeInAll = false
	return fm
}

// Close closes the index
func (i *Index) Close() error {
	return i.index.Close()
}

// IndexDigests adds every story of the given digests in one batch
func (i *Index) IndexDigests(digests []core.Digest) error {
	batch := i.index.NewBatch()
	for _, d := range digests {
		for _, doc := range documents(d) {
			if err := batch.Index(doc.ID, doc); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func documents(d core.Digest) []StoryDocument {
	docs := make([]StoryDocument, 0, d.Content.TotalStories())
	add := func(section string, stories []core.DigestStory) {
		for n, s := range stories {
			docs = append(docs, StoryDocument{
				ID:       fmt.Sprintf("%s:%s:%d", d.ID, section, n),
				Date:     d.DigestDate,
				Section:  section,
				Title:    s.Title,
				Summary:  s.ExecutiveSummary,
				Impact:   s.BusinessImpact,
				URL:      s.SourceURL,
				DigestID: d.ID,
			})
		}
	}
	add(SectionBanking, d.Content.BankingStories)
	add(SectionAI, d.Content.AIStories)
	return docs
}

// Search runs a query string query (quotes, +/-, field:term) and returns
// the best matches first.
func (i *Index) Search(queryStr string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	query := bleve.NewQueryStringQuery(queryStr)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Fields = []string{"Date", "Section", "Title", "URL"}

	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		hit := Hit{Score: h.Score}
		hit.Date, _ = h.Fields["Date"].(string)
		hit.Section, _ = h.Fields["Section"].(string)
		hit.Title, _ = h.Fields["Title"].(string)
		hit.URL, _ = h.Fields["URL"].(string)
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the number of indexed stories
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

// Build indexes the given digests into a fresh index
func Build(digests []core.Digest) (*Index, error) {
	idx, err := NewIndex()
	if err != nil {
		return nil, err
	}
	if err := idx.IndexDigests(digests); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return idx, nil
}
