package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mkiradani/daotomata-hotel-agent/internal/domain/confidence"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEvaluateErrorOverride(t *testing.T) {
	e := NewEvaluator(&fakeAssessor{score: 0.99}, time.Second)

	tests := []struct {
		name   string
		answer string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"below minimum length", "Yes."},
		{"timeout pattern", "Sorry, a timeout occurred while fetching availability"},
		{"service unavailable pattern", "The booking service unavailable right now, please retry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := e.Evaluate(context.Background(), tt.answer, "", "question")
			if score.Value != 0.0 {
				t.Fatalf("Value = %v, want 0.0", score.Value)
			}
			if score.Method != confidence.MethodErrorOverride {
				t.Errorf("Method = %q, want %q", score.Method, confidence.MethodErrorOverride)
			}
		})
	}
}

func TestEvaluateHybridCombination(t *testing.T) {
	// "not sure" is one uncertainty hit: keyword = 0.5 - 0.1 = 0.4.
	// Combined = 0.3*0.4 + 0.7*0.3 = 0.33.
	e := NewEvaluator(&fakeAssessor{score: 0.3, reasons: []string{"vague recommendation"}}, time.Second)

	score := e.Evaluate(context.Background(), "I'm not sure, but you could try the museum", "", "what should we visit?")

	if !almostEqual(score.Keyword, 0.4) {
		t.Errorf("Keyword = %v, want 0.4", score.Keyword)
	}
	if !almostEqual(score.Value, 0.33) {
		t.Errorf("Value = %v, want 0.33", score.Value)
	}
	if score.Method != confidence.MethodHybrid {
		t.Errorf("Method = %q, want %q", score.Method, confidence.MethodHybrid)
	}
	if score.Degraded() {
		t.Error("score marked degraded with a working assessor")
	}
}

func TestEvaluateAssertiveAnswer(t *testing.T) {
	// "confirmed" is one assertiveness hit: keyword = 0.6.
	// Combined = 0.3*0.6 + 0.7*0.95 = 0.845.
	e := NewEvaluator(&fakeAssessor{score: 0.95}, time.Second)

	score := e.Evaluate(context.Background(), "Your reservation is confirmed for room 205, check-in 3 PM", "", "is my booking ok?")

	if !almostEqual(score.Keyword, 0.6) {
		t.Errorf("Keyword = %v, want 0.6", score.Keyword)
	}
	if !almostEqual(score.Value, 0.845) {
		t.Errorf("Value = %v, want 0.845", score.Value)
	}
}

func TestEvaluateDegradedFallsBackToKeyword(t *testing.T) {
	e := NewEvaluator(&fakeAssessor{err: errors.New("model overloaded")}, time.Second)

	answer := "I'm not sure about that, maybe ask reception"
	score := e.Evaluate(context.Background(), answer, "", "q")

	// "not sure" + "maybe" = two uncertainty hits: keyword = 0.3.
	if !almostEqual(score.Value, 0.3) {
		t.Errorf("Value = %v, want keyword-only 0.3", score.Value)
	}
	if score.Method != confidence.MethodKeywordOnly {
		t.Errorf("Method = %q, want %q", score.Method, confidence.MethodKeywordOnly)
	}
	if !score.Degraded() {
		t.Error("expected degraded_evaluation marker in reasons")
	}
}

func TestEvaluateNilAssessorIsDegraded(t *testing.T) {
	e := NewEvaluator(nil, time.Second)

	score := e.Evaluate(context.Background(), "The pool opens at 7am every day", "", "q")
	if score.Method != confidence.MethodKeywordOnly {
		t.Errorf("Method = %q, want %q", score.Method, confidence.MethodKeywordOnly)
	}
	if !score.Degraded() {
		t.Error("expected degraded_evaluation marker")
	}
	if !almostEqual(score.Value, 0.5) {
		t.Errorf("Value = %v, want neutral 0.5", score.Value)
	}
}

func TestKeywordScoreClamped(t *testing.T) {
	answer := "not sure, maybe, perhaps, possibly, i don't know, it depends, i think"
	score, _ := keywordScore(answer)
	if score != 0.0 {
		t.Errorf("score = %v, want clamped 0.0", score)
	}

	answer = "definitely, certainly, guaranteed, confirmed, absolutely, of course, for sure"
	score, _ = keywordScore(answer)
	if score != 1.0 {
		t.Errorf("score = %v, want clamped 1.0", score)
	}
}

func TestEvaluateSelfScoreClamped(t *testing.T) {
	e := NewEvaluator(&fakeAssessor{score: 7.5}, time.Second)

	score := e.Evaluate(context.Background(), "The restaurant opens at seven in the evening", "", "q")
	if score.SelfEval != 1.0 {
		t.Errorf("SelfEval = %v, want clamped 1.0", score.SelfEval)
	}
	if score.Value > 1.0 {
		t.Errorf("Value = %v, want <= 1.0", score.Value)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"confidence":0.8,"reasons":[]}`, `{"confidence":0.8,"reasons":[]}`},
		{"```json\n{\"confidence\":0.8}\n```", `{"confidence":0.8}`},
		{"Sure! {\"confidence\": 0.5, \"reasons\": [\"x\"]} hope that helps", `{"confidence": 0.5, "reasons": ["x"]}`},
	}
	for _, tt := range tests {
		if got := extractJSON(tt.in); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
