package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/zhipin"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func testProfile() *zhipin.Profile {
	return &zhipin.Profile{Name: "李雷", Skills: []string{"Go", "Kubernetes"}, ExperienceYears: 4}
}

func TestMatcherEvaluate(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"fit\": true, \"score\": 0.9, \"reason\": \"技能匹配\", \"message\": \"您好\"}\n```"}
	matcher := NewMatcher(stub, 0.5, 0, zap.NewNop())

	listing := &zhipin.Listing{ID: "j1", Title: "Go开发工程师", Company: "某科技", Score: 77}

	assessment, err := matcher.Evaluate(context.Background(), testProfile(), listing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !assessment.Fit || assessment.Score != 0.9 {
		t.Fatalf("unexpected assessment %+v", assessment)
	}
	if assessment.Message != "您好" || assessment.Reason != "技能匹配" {
		t.Fatalf("unexpected text fields %+v", assessment)
	}
	if assessment.Raw == "" {
		t.Fatalf("expected raw response to be kept")
	}

	if !strings.Contains(stub.lastPrompt, "Go开发工程师") || !strings.Contains(stub.lastPrompt, "Kubernetes") {
		t.Fatalf("prompt misses listing or profile: %s", stub.lastPrompt)
	}
	if strings.Contains(stub.lastPrompt, "{{") {
		t.Fatalf("prompt has unreplaced placeholders")
	}
	if strings.Contains(stub.lastPrompt, "match_score") {
		t.Fatalf("prompt must not leak the local score")
	}
}

func TestMatcherAppliesThreshold(t *testing.T) {
	stub := &stubGenerator{response: `{"fit": "yes", "score": "0.3", "reason": "weak", "message": "hi"}`}
	matcher := NewMatcher(stub, 0.5, 0, nil)

	assessment, err := matcher.Evaluate(context.Background(), testProfile(), &zhipin.Listing{ID: "j2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assessment.Fit {
		t.Fatalf("expected threshold to reject the listing")
	}
	if assessment.Score != 0.3 {
		t.Fatalf("expected coerced score, got %v", assessment.Score)
	}
}

func TestMatcherErrors(t *testing.T) {
	matcher := NewMatcher(&stubGenerator{err: errors.New("boom")}, 0, 0, nil)
	if _, err := matcher.Evaluate(context.Background(), testProfile(), &zhipin.Listing{}); err == nil {
		t.Fatalf("expected generator error")
	}

	matcher = NewMatcher(&stubGenerator{response: "not json"}, 0, 0, nil)
	if _, err := matcher.Evaluate(context.Background(), testProfile(), &zhipin.Listing{}); err == nil {
		t.Fatalf("expected parse error")
	}

	if _, err := matcher.Evaluate(context.Background(), nil, &zhipin.Listing{}); err == nil {
		t.Fatalf("expected error without profile")
	}
}

func TestDecodeVerdict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want verdict
	}{
		{
			name: "loose types",
			raw:  `{"fit": 1, "score": "n/a", "reason": {"k": "v"}}`,
			want: verdict{Fit: true, Score: 0, Reason: `{"k":"v"}`},
		},
		{
			name: "fenced answer",
			raw:  "```json\n{\"fit\": \"是\", \"score\": 0.75, \"message\": \" 您好 \"}\n```",
			want: verdict{Fit: true, Score: 0.75, Message: "您好"},
		},
		{
			name: "null fields stay empty",
			raw:  `{"fit": null, "score": null, "reason": "no"}`,
			want: verdict{Reason: "no"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeVerdict(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}
