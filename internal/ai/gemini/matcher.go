package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/ai"
	"github.com/spigell/zhipin-responder/internal/utils"
	"github.com/spigell/zhipin-responder/internal/zhipin"
)

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	fallbackPrompt      = "Candidate profile:\n{{PROFILE_JSON}}\n\nListing:\n{{LISTING_JSON}}\n\nJSON Response:"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Matcher asks Gemini whether a listing fits the candidate and for the
// greeting to open the chat with.
type Matcher struct {
	generator  contentGenerator
	threshold  float64 // positive verdicts scoring below it are overridden
	previewLen int
	logger     *zap.Logger
}

func NewMatcher(generator contentGenerator, minScore float64, maxLogLength int, logger *zap.Logger) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Matcher{
		generator:  generator,
		threshold:  minScore,
		previewLen: maxLogLength,
		logger:     logger,
	}
}

// promptListing is what the model sees of a listing. The local score and
// any earlier assessment stay out of the prompt.
type promptListing struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Salary      string `json:"salary,omitempty"`
	City        string `json:"city,omitempty"`
	Experience  string `json:"experience,omitempty"`
	Education   string `json:"education,omitempty"`
	Description string `json:"description,omitempty"`
	Recruiter   string `json:"recruiter,omitempty"`
}

func (m *Matcher) Evaluate(ctx context.Context, profile *zhipin.Profile, listing *zhipin.Listing) (*ai.FitAssessment, error) {
	switch {
	case profile == nil:
		return nil, errors.New("profile is required")
	case listing == nil:
		return nil, errors.New("listing is required")
	}

	prompt, err := renderPrompt(profile, listing)
	if err != nil {
		return nil, err
	}

	log := m.logger.With(zap.String("job_id", listing.ID))
	log.Debug("ai prompt",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, m.previewLen)),
	)

	raw, err := m.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	log.Debug("ai response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, m.previewLen)),
	)

	v, err := decodeVerdict(raw)
	if err != nil {
		return nil, err
	}

	if v.Fit && m.threshold > 0 && v.Score < m.threshold {
		log.Debug("verdict below threshold, rejecting",
			zap.Float64("score", v.Score),
			zap.Float64("threshold", m.threshold),
		)
		v.Fit = false
	}

	return &ai.FitAssessment{
		Fit:     v.Fit,
		Score:   v.Score,
		Reason:  v.Reason,
		Message: v.Message,
		Raw:     raw,
	}, nil
}

func renderPrompt(profile *zhipin.Profile, listing *zhipin.Listing) (string, error) {
	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal profile payload: %w", err)
	}

	listingJSON, err := json.MarshalIndent(promptListing{
		Title:       listing.Title,
		Company:     listing.Company,
		Salary:      listing.Salary,
		City:        listing.City,
		Experience:  listing.Experience,
		Education:   listing.Education,
		Description: listing.Description,
		Recruiter:   listing.Recruiter,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal listing payload: %w", err)
	}

	tmpl := promptTemplate
	if strings.TrimSpace(tmpl) == "" {
		tmpl = fallbackPrompt
	}

	return strings.NewReplacer(
		"{{PROFILE_JSON}}", string(profileJSON),
		"{{LISTING_JSON}}", string(listingJSON),
	).Replace(tmpl), nil
}

type verdict struct {
	Fit     bool    `mapstructure:"fit"`
	Score   float64 `mapstructure:"score"`
	Reason  string  `mapstructure:"reason"`
	Message string  `mapstructure:"message"`
}

// decodeVerdict reads the JSON object out of the model answer. Models are
// loose with types, so every field is coerced rather than rejected.
func decodeVerdict(raw string) (verdict, error) {
	var (
		fields map[string]any
		v      verdict
	)

	if err := json.Unmarshal([]byte(stripFences(raw)), &fields); err != nil {
		return v, fmt.Errorf("parse gemini response: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: lenient,
		Result:     &v,
	})
	if err != nil {
		return v, err
	}
	if err := decoder.Decode(fields); err != nil {
		return v, fmt.Errorf("decode gemini verdict: %w", err)
	}
	return v, nil
}

func lenient(_ reflect.Type, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Bool:
		return truthy(data), nil
	case reflect.Float64:
		return number(data), nil
	case reflect.String:
		return text(data), nil
	default:
		return data, nil
	}
}

// stripFences drops a markdown code fence around the answer.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(strings.Trim(raw, "`"))
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "是":
			return true
		}
	}
	return false
}

// number returns 0 for anything that is not a finite number.
func number(v any) float64 {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func text(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
