package evaluation

import (
	"context"
	"fmt"

	"github.com/upb/faq-rag/models"
	"go.uber.org/zap"
)

// Retriever is the part of the retrieval service the retrieval evaluation needs
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) (models.RetrievalResult, error)
}

// RetrievalCase is one labeled question
type RetrievalCase struct {
	Question    string `json:"question"`
	ExpectedURL string `json:"expected_url"`
}

// CaseResult is the outcome of one case
type CaseResult struct {
	Question      string   `json:"question"`
	ExpectedURL   string   `json:"expected_url"`
	RetrievedURLs []string `json:"retrieved_urls"`
	Precision     float64  `json:"precision"`
	Hit           bool     `json:"hit"`
	Error         string   `json:"error,omitempty"`
}

// RetrievalReport aggregates context precision and recall over all cases
type RetrievalReport struct {
	K         int          `json:"k"`
	Cases     int          `json:"cases"`
	Failed    int          `json:"failed"`
	Precision float64      `json:"context_precision"`
	Recall    float64      `json:"context_recall"`
	Results   []CaseResult `json:"results"`
}

// EvaluateRetrieval runs every case through the retriever. Precision is the share of
// retrieved documents whose URL is the expected one; recall is 1 when it was retrieved at all.
// A failing case scores 0 on both and is counted in Failed.
func EvaluateRetrieval(ctx context.Context, retriever Retriever, cases []RetrievalCase, k int, logger *zap.Logger) (*RetrievalReport, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("no retrieval cases")
	}

	report := &RetrievalReport{K: k, Cases: len(cases), Results: make([]CaseResult, 0, len(cases))}
	var precisionSum, recallSum float64

	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cr := CaseResult{Question: c.Question, ExpectedURL: c.ExpectedURL, RetrievedURLs: []string{}}
		result, err := retriever.Retrieve(ctx, c.Question, k)
		if err != nil {
			logger.Warn("retrieval case failed", zap.String("question", c.Question), zap.Error(err))
			cr.Error = err.Error()
			report.Failed++
			report.Results = append(report.Results, cr)
			continue
		}

		relevant := 0
		for _, sd := range result {
			cr.RetrievedURLs = append(cr.RetrievedURLs, sd.Document.SourceURL)
			if sd.Document.SourceURL == c.ExpectedURL {
				relevant++
			}
		}
		if len(result) > 0 {
			cr.Precision = round2(float64(relevant) / float64(len(result)))
		}
		cr.Hit = relevant > 0

		precisionSum += float64(relevant) / float64(max(len(result), 1))
		if cr.Hit {
			recallSum++
		}
		report.Results = append(report.Results, cr)
	}

	report.Precision = round2(precisionSum / float64(len(cases)))
	report.Recall = round2(recallSum / float64(len(cases)))
	return report, nil
}
