package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/upb/faq-rag/models"
)

var errNoJSONObject = errors.New("judge response contains no JSON object")

// BuildJudgePrompt asks the judge for the four quality scores as a JSON object
func BuildJudgePrompt(question, answer string, contextDocs []*models.Document, scaleMin, scaleMax float64) string {
	parts := make([]string, 0, len(contextDocs))
	for _, doc := range contextDocs {
		parts = append(parts, doc.Content)
	}
	scale := fmt.Sprintf("%s-%s", formatScore(scaleMin), formatScore(scaleMax))

	return fmt.Sprintf(`Please evaluate this question-answer pair with the given context:

Question: %s
Response: %s
Context: %s

Evaluate on the following criteria (score %s):
1. Factual Accuracy: Does the response align with facts in the context?
2. Relevance: How well does the response address the question?
3. Completeness: Does the response cover all important aspects?
4. Context Usage: How well does it use the provided context?

Return only the scores in JSON format like this:
{"factual_accuracy": score, "relevance": score, "completeness": score, "context_usage": score}`,
		question, answer, strings.Join(parts, " "), scale)
}

// ParseJudgeScores extracts the judge scores from raw model output.
// Code fences and surrounding prose are ignored; values may be numbers or numeric strings
// and are clamped to [scaleMin, scaleMax]. A missing or non-numeric key is an error.
func ParseJudgeScores(raw string, scaleMin, scaleMax float64) (map[string]float64, error) {
	obj, err := firstJSONObject(stripCodeFences(raw))
	if err != nil {
		return nil, err
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, fmt.Errorf("invalid judge JSON: %w", err)
	}

	scores := make(map[string]float64, len(models.JudgeScoreNames))
	for _, name := range models.JudgeScoreNames {
		v, ok := fields[name]
		if !ok {
			return nil, fmt.Errorf("judge response missing %q", name)
		}
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("judge score %q: %w", name, err)
		}
		scores[name] = clamp(f, scaleMin, scaleMax)
	}
	return scores, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// firstJSONObject returns the first balanced {...} span, honoring string literals
func firstJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", errNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errNoJSONObject
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, errors.New("not a finite number")
		}
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("not numeric: %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
