package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/mkiradani/daotomata-hotel-agent/internal/domain/confidence"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/llm"
)

// Component weights for the combined confidence score.
const (
	weightKeyword  = 0.3
	weightSelfEval = 0.7
)

// minAnswerLength is the shortest answer that can be trusted at all.
const minAnswerLength = 10

// uncertainMarkers lower the keyword score, one step per hit.
var uncertainMarkers = []string{
	"not sure", "i'm not certain", "might", "maybe", "perhaps",
	"i don't have", "i don't know", "i cannot", "unsure", "possibly",
	"it depends", "i think", "i believe",
	"no estoy seguro", "no estoy segura", "quizas", "quizás", "tal vez",
	"no tengo", "no lo sé", "no puedo", "posiblemente", "creo que",
}

// assertiveMarkers raise the keyword score, one step per hit.
var assertiveMarkers = []string{
	"definitely", "certainly", "guaranteed", "confirmed", "absolutely",
	"of course", "for sure", "exactly",
	"definitivamente", "por supuesto", "garantizado", "confirmado",
	"con seguridad", "exactamente",
}

// errorPatterns force the score to zero when they appear in an answer.
// These are internal failure strings that must never reach a guest as a
// trusted reply.
var errorPatterns = []string{
	"timeout", "timed out", "service unavailable", "internal error",
	"something went wrong", "an error occurred", "unable to process",
	"error interno", "servicio no disponible", "ocurrió un error",
}

// SelfAssessor is the secondary trust oracle. Implementations judge an
// answer against its question and context and return a confidence in [0,1]
// plus short rationale strings.
type SelfAssessor interface {
	Assess(ctx context.Context, answer, question, convContext string) (float64, []string, error)
}

// Evaluator scores generated answers. It never returns an error: every
// failure path degrades to a conservative score so escalation stays the
// safe default.
type Evaluator struct {
	assessor SelfAssessor
	timeout  time.Duration
}

// NewEvaluator creates an Evaluator. assessor may be nil, in which case
// every score is keyword-only and flagged degraded.
func NewEvaluator(assessor SelfAssessor, timeout time.Duration) *Evaluator {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Evaluator{assessor: assessor, timeout: timeout}
}

// Evaluate produces the confidence score for one answered turn.
func (e *Evaluator) Evaluate(ctx context.Context, answer, convContext, question string) confidence.Score {
	if reason, bad := errorOverride(answer); bad {
		return confidence.Score{
			Value:          0.0,
			WeightKeyword:  weightKeyword,
			WeightSelfEval: weightSelfEval,
			Method:         confidence.MethodErrorOverride,
			Reasons:        []string{reason},
		}
	}

	keyword, keywordReasons := keywordScore(answer)

	if e.assessor == nil {
		return keywordOnly(keyword, keywordReasons)
	}

	assessCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	selfScore, selfReasons, err := e.assessor.Assess(assessCtx, answer, question, convContext)
	if err != nil {
		slog.Warn("self-assessment unavailable, falling back to keyword score", "error", err)
		return keywordOnly(keyword, keywordReasons)
	}
	selfScore = clamp(selfScore)

	return confidence.Score{
		Value:          clamp(weightKeyword*keyword + weightSelfEval*selfScore),
		Keyword:        keyword,
		SelfEval:       selfScore,
		WeightKeyword:  weightKeyword,
		WeightSelfEval: weightSelfEval,
		Method:         confidence.MethodHybrid,
		Reasons:        append(keywordReasons, selfReasons...),
	}
}

// errorOverride reports whether the answer must be hard-scored to zero.
func errorOverride(answer string) (string, bool) {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return "empty answer", true
	}
	if len(trimmed) < minAnswerLength {
		return "answer below minimum length", true
	}
	lower := strings.ToLower(trimmed)
	for _, p := range errorPatterns {
		if strings.Contains(lower, p) {
			return "answer matches error pattern: " + p, true
		}
	}
	return "", false
}

// keywordScore scans the answer for uncertainty and assertiveness markers.
// Deterministic given the fixed lexicons.
func keywordScore(answer string) (float64, []string) {
	lower := strings.ToLower(answer)

	var uncertain, assertive int
	var reasons []string
	for _, m := range uncertainMarkers {
		if n := strings.Count(lower, m); n > 0 {
			uncertain += n
			reasons = append(reasons, "uncertainty marker: "+m)
		}
	}
	for _, m := range assertiveMarkers {
		if n := strings.Count(lower, m); n > 0 {
			assertive += n
			reasons = append(reasons, "assertiveness marker: "+m)
		}
	}

	score := clamp(0.5 + 0.1*float64(assertive-uncertain))
	return score, reasons
}

func keywordOnly(keyword float64, reasons []string) confidence.Score {
	return confidence.Score{
		Value:          keyword,
		Keyword:        keyword,
		WeightKeyword:  weightKeyword,
		WeightSelfEval: weightSelfEval,
		Method:         confidence.MethodKeywordOnly,
		Reasons:        append(reasons, confidence.ReasonDegraded),
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// LLMSelfAssessor implements SelfAssessor with a single judgment call to a
// language model through the completion port.
type LLMSelfAssessor struct {
	client llm.Client
	model  string
}

// NewLLMSelfAssessor creates a SelfAssessor backed by the given model.
func NewLLMSelfAssessor(client llm.Client, model string) *LLMSelfAssessor {
	return &LLMSelfAssessor{client: client, model: model}
}

const assessSystemPrompt = `You are a quality assurance evaluator for a hotel guest assistant.
Given a guest question and the assistant's answer, judge how confident you are
that the answer is correct, complete, and safe to send to the guest.
Respond with strict JSON only: {"confidence": <number 0.0-1.0>, "reasons": ["<short reason>", ...]}`

// Assess issues the judgment call and parses {"confidence", "reasons"}.
func (a *LLMSelfAssessor) Assess(ctx context.Context, answer, question, convContext string) (float64, []string, error) {
	var sb strings.Builder
	if convContext != "" {
		sb.WriteString("Conversation context:\n")
		sb.WriteString(convContext)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Guest question:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nAssistant answer:\n")
	sb.WriteString(answer)

	raw, err := a.client.Complete(ctx, llm.CompletionRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: "system", Content: assessSystemPrompt},
			{Role: "user", Content: sb.String()},
		},
		Temperature: 0,
		MaxTokens:   256,
	})
	if err != nil {
		return 0, nil, err
	}

	var parsed struct {
		Confidence float64  `json:"confidence"`
		Reasons    []string `json:"reasons"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return 0, nil, err
	}
	return parsed.Confidence, parsed.Reasons, nil
}

// extractJSON strips markdown code fences some models wrap around JSON output.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}
