// Package evaluation scores generated answers with an embedding similarity channel and an LLM judge.
package evaluation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/upb/faq-rag/internal/vectors"
	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/services/embedding"
	"github.com/upb/faq-rag/services/providers"
	"go.uber.org/zap"
)

// Config holds the scoring scale, weights and decision threshold
type Config struct {
	Enabled         bool
	JudgeModel      string
	JudgeMaxTokens  int
	ScaleMin        float64
	ScaleMax        float64
	Weights         map[string]float64
	AcceptThreshold float64
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	weights := make(map[string]float64, len(models.ScoreNames))
	for _, name := range models.ScoreNames {
		weights[name] = 1
	}
	return Config{
		Enabled:         true,
		JudgeModel:      "o3-mini",
		ScaleMin:        0,
		ScaleMax:        10,
		Weights:         weights,
		AcceptThreshold: 7,
	}
}

// EvaluationService scores answers. It never fails: a broken channel yields
// minimum scores for that channel and marks the result degraded.
type EvaluationService struct {
	embedder embedding.Embedder
	judge    providers.Provider
	config   Config
	logger   *zap.Logger
}

// NewEvaluationService creates a new EvaluationService instance
func NewEvaluationService(embedder embedding.Embedder, judge providers.Provider, config Config, logger *zap.Logger) *EvaluationService {
	if config.ScaleMax <= config.ScaleMin {
		config.ScaleMin, config.ScaleMax = 0, 10
	}
	if config.JudgeModel == "" {
		config.JudgeModel = "o3-mini"
	}
	return &EvaluationService{
		embedder: embedder,
		judge:    judge,
		config:   config,
		logger:   logger,
	}
}

// Evaluate scores one answer. The two channels run concurrently.
func (s *EvaluationService) Evaluate(ctx context.Context, question, answer string, contextDocs []*models.Document, references []string) *models.EvaluationResult {
	if !s.config.Enabled {
		result := models.NewDefaultEvaluation(s.config.ScaleMin)
		result.RawJudgeResponse = "evaluation disabled"
		return result
	}

	start := time.Now()
	var (
		wg          sync.WaitGroup
		semantic    float64
		semanticErr error
		judged      map[string]float64
		raw         string
		judgeErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		semantic, semanticErr = s.semanticSimilarity(ctx, question, answer, contextDocs)
	}()
	go func() {
		defer wg.Done()
		judged, raw, judgeErr = s.judgeScores(ctx, question, answer, contextDocs)
	}()
	wg.Wait()

	result := &models.EvaluationResult{
		Scores:           make(map[string]float64, len(models.ScoreNames)),
		RawJudgeResponse: raw,
	}

	if semanticErr != nil {
		s.logger.Warn("semantic similarity failed", zap.Error(semanticErr))
		result.Degraded = true
		semantic = s.config.ScaleMin
	}
	result.Scores[models.ScoreSemanticSimilarity] = semantic

	if judgeErr != nil {
		s.logger.Warn("judge evaluation failed", zap.Error(judgeErr))
		result.Degraded = true
		result.RawJudgeResponse = "Evaluation failed: " + judgeErr.Error()
		judged = nil
	}
	for _, name := range models.JudgeScoreNames {
		if v, ok := judged[name]; ok {
			result.Scores[name] = v
		} else {
			result.Scores[name] = s.config.ScaleMin
		}
	}

	if len(contextDocs) == 0 {
		result.Scores[models.ScoreContextUsage] = s.config.ScaleMin
	}

	result.OverallConfidence = OverallConfidence(result.Scores, s.config.Weights)
	result.Verdict = DecideVerdict(result.OverallConfidence, s.config.AcceptThreshold, result.Degraded)

	s.logger.Debug("answer evaluated",
		zap.Float64("overall_confidence", result.OverallConfidence),
		zap.String("verdict", string(result.Verdict)),
		zap.Bool("degraded", result.Degraded),
		zap.Int("references", len(references)),
		zap.Duration("latency", time.Since(start)),
	)
	return result
}

// semanticSimilarity is the mean cosine of the answer against the question and
// the joined context, clamped to [0,1] and mapped onto the score scale
func (s *EvaluationService) semanticSimilarity(ctx context.Context, question, answer string, contextDocs []*models.Document) (float64, error) {
	if strings.TrimSpace(answer) == "" {
		return 0, fmt.Errorf("empty answer")
	}

	texts := []string{answer, question}
	if joined := joinContent(contextDocs); joined != "" {
		texts = append(texts, joined)
	}

	vecs, err := s.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vecs) != len(texts) {
		return 0, fmt.Errorf("expected %d vectors, got %d", len(texts), len(vecs))
	}

	var sum float64
	for _, v := range vecs[1:] {
		sum += clamp(vectors.Cosine(vecs[0], v), 0, 1)
	}
	sim := sum / float64(len(vecs)-1)

	return round2(s.config.ScaleMin + sim*(s.config.ScaleMax-s.config.ScaleMin)), nil
}

func (s *EvaluationService) judgeScores(ctx context.Context, question, answer string, contextDocs []*models.Document) (map[string]float64, string, error) {
	if s.judge == nil {
		return nil, "", fmt.Errorf("no judge provider configured")
	}

	resp, err := s.judge.ChatCompletion(ctx, &providers.ChatRequest{
		Model: s.config.JudgeModel,
		Messages: []providers.Message{{
			Role:    providers.RoleUser,
			Content: BuildJudgePrompt(question, answer, contextDocs, s.config.ScaleMin, s.config.ScaleMax),
		}},
		MaxTokens:      s.config.JudgeMaxTokens,
		ResponseFormat: providers.ResponseFormatJSON,
	})
	if err != nil {
		return nil, "", err
	}

	raw := resp.Content()
	scores, err := ParseJudgeScores(raw, s.config.ScaleMin, s.config.ScaleMax)
	if err != nil {
		return nil, raw, err
	}
	return scores, raw, nil
}

// OverallConfidence is the weighted mean of the scores, rounded to two decimals.
// Unknown weights count as 1; a zero weight sum falls back to the plain mean.
func OverallConfidence(scores map[string]float64, weights map[string]float64) float64 {
	var total, weightSum float64
	for _, name := range models.ScoreNames {
		w, ok := weights[name]
		if !ok {
			w = 1
		}
		total += w * scores[name]
		weightSum += w
	}
	if weightSum == 0 {
		total = 0
		for _, name := range models.ScoreNames {
			total += scores[name]
		}
		weightSum = float64(len(models.ScoreNames))
	}
	return round2(total / weightSum)
}

// DecideVerdict accepts only non-degraded results at or above the threshold
func DecideVerdict(overall, threshold float64, degraded bool) models.Verdict {
	if !degraded && overall >= threshold {
		return models.VerdictAccept
	}
	return models.VerdictFlag
}

func joinContent(docs []*models.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if c := strings.TrimSpace(d.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}
