package models

// Score names
const (
	ScoreSemanticSimilarity = "semantic_similarity"
	ScoreFactualAccuracy    = "factual_accuracy"
	ScoreRelevance          = "relevance"
	ScoreCompleteness       = "completeness"
	ScoreContextUsage       = "context_usage"
)

// ScoreNames lists every score an EvaluationResult carries
var ScoreNames = []string{
	ScoreSemanticSimilarity,
	ScoreFactualAccuracy,
	ScoreRelevance,
	ScoreCompleteness,
	ScoreContextUsage,
}

// JudgeScoreNames lists the scores produced by the judge model
var JudgeScoreNames = []string{
	ScoreFactualAccuracy,
	ScoreRelevance,
	ScoreCompleteness,
	ScoreContextUsage,
}

// Verdict is the coarse accept/flag decision on an answer
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictFlag   Verdict = "flag"
)

// EvaluationResult holds the quality scores of one answer
type EvaluationResult struct {
	Scores            map[string]float64 `json:"scores"`
	OverallConfidence float64            `json:"overall_confidence"`
	Verdict           Verdict            `json:"verdict"`
	Degraded          bool               `json:"degraded"`
	RawJudgeResponse  string             `json:"raw_response,omitempty"`
}

// NewDefaultEvaluation returns a result with every score at its default
func NewDefaultEvaluation(defaultScore float64) *EvaluationResult {
	scores := make(map[string]float64, len(ScoreNames))
	for _, name := range ScoreNames {
		scores[name] = defaultScore
	}
	return &EvaluationResult{
		Scores:            scores,
		OverallConfidence: defaultScore,
		Verdict:           VerdictFlag,
	}
}
