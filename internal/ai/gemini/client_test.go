package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"google.golang.org/genai"
)

type fakeModels struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
	lastModel string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	f.lastModel = model
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	return f.responses[i], nil
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func noSleep(t *testing.T) {
	t.Helper()
	original := sleep
	sleep = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { sleep = original })
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	noSleep(t)

	models := &fakeModels{
		errs:      []error{genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}, nil},
		responses: []*genai.GenerateContentResponse{nil, textResponse(" first ", "", "second")},
	}
	gen := newGenerator(models, "", 2, nil)

	out, err := gen.GenerateContent(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "first\nsecond" {
		t.Fatalf("unexpected output %q", out)
	}
	if models.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", models.calls)
	}
	if models.lastModel != defaultModel || gen.Model() != defaultModel {
		t.Fatalf("expected default model, got %s", models.lastModel)
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	noSleep(t)

	models := &fakeModels{errs: []error{genai.APIError{Code: http.StatusBadRequest}}}
	gen := newGenerator(models, "gemini-pro", 3, nil)

	if _, err := gen.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected error")
	}
	if models.calls != 1 {
		t.Fatalf("expected a single call, got %d", models.calls)
	}
}

func TestGeneratorGivesUpAfterRetries(t *testing.T) {
	noSleep(t)

	quota := genai.APIError{Code: http.StatusTooManyRequests}
	models := &fakeModels{errs: []error{quota, quota, quota}}
	gen := newGenerator(models, "gemini-pro", 2, nil)

	_, err := gen.GenerateContent(context.Background(), "prompt")
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected the last api error, got %v", err)
	}
	if models.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", models.calls)
	}
}

func TestGeneratorRejectsEmptyInputAndOutput(t *testing.T) {
	gen := newGenerator(&fakeModels{responses: []*genai.GenerateContentResponse{textResponse("  ")}}, "", 0, nil)

	if _, err := gen.GenerateContent(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for empty prompt")
	}
	if _, err := gen.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected error for empty response")
	}
}
