package models

// ScoredDocument pairs a document with its similarity to a query
type ScoredDocument struct {
	Document *Document `json:"document"`
	Score    float64   `json:"score"`
}

// RetrievalResult is ordered by descending score
type RetrievalResult []ScoredDocument

// Documents returns the documents in ranking order
func (r RetrievalResult) Documents() []*Document {
	docs := make([]*Document, 0, len(r))
	for _, sd := range r {
		docs = append(docs, sd.Document)
	}
	return docs
}

// SourceURLs returns the distinct source URLs in order of first appearance
func (r RetrievalResult) SourceURLs() []string {
	return DistinctURLs(r.Documents())
}

// DistinctURLs deduplicates document URLs, keeping first-appearance order
func DistinctURLs(docs []*Document) []string {
	seen := make(map[string]struct{}, len(docs))
	urls := make([]string, 0, len(docs))
	for _, d := range docs {
		if d == nil || d.SourceURL == "" {
			continue
		}
		if _, ok := seen[d.SourceURL]; ok {
			continue
		}
		seen[d.SourceURL] = struct{}{}
		urls = append(urls, d.SourceURL)
	}
	return urls
}

// GeneratedAnswer is the model's answer and the sources it was grounded on
type GeneratedAnswer struct {
	Text       string   `json:"answer"`
	References []string `json:"references"`
}
