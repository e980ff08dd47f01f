package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/DeadBoTt-exe/Document-RAG/models"
)

// Validator decides whether an answer is supported by the context it was
// generated from.
type Validator interface {
	Validate(ctx context.Context, question, answer, contextText string) (models.ValidationOutcome, error)
}

// SafeValidate runs v and turns any error or panic into an invalid outcome,
// so validation never fails a request.
func SafeValidate(ctx context.Context, v Validator, question, answer, contextText string) (out models.ValidationOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = models.ValidationOutcome{IsValid: false, Reason: fmt.Sprintf("Validation error: %v", r)}
		}
	}()

	out, err := v.Validate(ctx, question, answer, contextText)
	if err != nil {
		return models.ValidationOutcome{IsValid: false, Reason: "Validation error: " + err.Error()}
	}
	if strings.TrimSpace(out.Reason) == "" {
		if out.IsValid {
			out.Reason = "Answer accepted by validator."
		} else {
			out.Reason = "Answer rejected by validator."
		}
	}
	return out
}

// LexicalValidator accepts an answer when enough of its content words occur
// in the context and every number it states occurs there too.
type LexicalValidator struct {
	minCoverage float64
}

func NewLexicalValidator(minCoverage float64) *LexicalValidator {
	return &LexicalValidator{minCoverage: minCoverage}
}

func (v *LexicalValidator) Validate(_ context.Context, _, answer, contextText string) (models.ValidationOutcome, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return models.ValidationOutcome{IsValid: false, Reason: "Answer is empty."}, nil
	}
	if strings.Contains(answer, DontKnowAnswer) {
		return models.ValidationOutcome{IsValid: false, Reason: "Model could not find the answer in the context."}, nil
	}

	known := make(map[string]bool)
	for _, w := range contentWords(contextText) {
		known[stem(w)] = true
	}

	var words, missingNumbers []string
	seen := make(map[string]bool)
	for _, w := range contentWords(answer) {
		if seen[w] {
			continue
		}
		seen[w] = true
		if isNumber(w) {
			if !known[w] {
				missingNumbers = append(missingNumbers, w)
			}
			continue
		}
		words = append(words, w)
	}

	if len(missingNumbers) > 0 {
		sort.Strings(missingNumbers)
		return models.ValidationOutcome{
			IsValid: false,
			Reason:  "Answer cites numbers not found in the context: " + strings.Join(missingNumbers, ", ") + ".",
		}, nil
	}
	if len(words) == 0 {
		if len(seen) > 0 {
			return models.ValidationOutcome{IsValid: true, Reason: "Every number in the answer appears in the context."}, nil
		}
		return models.ValidationOutcome{IsValid: false, Reason: "Answer has no content words to check against the context."}, nil
	}

	supported := 0
	for _, w := range words {
		if known[stem(w)] {
			supported++
		}
	}
	coverage := float64(supported) / float64(len(words))
	pct := int(math.Round(coverage * 100))
	if coverage < v.minCoverage {
		return models.ValidationOutcome{
			IsValid: false,
			Reason: fmt.Sprintf("Only %d%% of the answer's content words appear in the context (need %d%%).",
				pct, int(math.Round(v.minCoverage*100))),
		}, nil
	}
	return models.ValidationOutcome{
		IsValid: true,
		Reason:  fmt.Sprintf("%d%% of the answer's content words appear in the context.", pct),
	}, nil
}

// stem strips the most common English inflections so that "pipelines" and
// "pipeline" compare equal.
func stem(w string) string {
	if isNumber(w) {
		return w
	}
	for _, suffix := range []string{"ing", "ies", "ed", "s"} {
		if strings.HasSuffix(w, suffix) && len(w)-len(suffix) >= 3 {
			if suffix == "ies" {
				return w[:len(w)-3] + "y"
			}
			return w[:len(w)-len(suffix)]
		}
	}
	return w
}

// LLMValidator asks a second model call whether the answer is grounded.
type LLMValidator struct {
	gen Generator
}

func NewLLMValidator(gen Generator) *LLMValidator {
	return &LLMValidator{gen: gen}
}

func (v *LLMValidator) Validate(ctx context.Context, question, answer, contextText string) (models.ValidationOutcome, error) {
	if strings.TrimSpace(answer) == "" {
		return models.ValidationOutcome{IsValid: false, Reason: "Answer is empty."}, nil
	}
	reply, err := v.gen.Generate(ctx, BuildValidationPrompt(question, answer, contextText))
	if err != nil {
		return models.ValidationOutcome{}, fmt.Errorf("validator model call failed: %w", err)
	}
	return parseVerdict(reply)
}

func parseVerdict(reply string) (models.ValidationOutcome, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(reply), "\n")
	line = strings.TrimSpace(line)
	upper := strings.ToUpper(line)

	switch {
	case strings.HasPrefix(upper, "INVALID"):
		reason := strings.TrimSpace(strings.TrimLeft(line[len("INVALID"):], ":- "))
		if reason == "" {
			reason = "Validator model judged the answer unsupported by the context."
		}
		return models.ValidationOutcome{IsValid: false, Reason: reason}, nil
	case strings.HasPrefix(upper, "VALID"):
		return models.ValidationOutcome{IsValid: true, Reason: "Validator model judged the answer supported by the context."}, nil
	default:
		return models.ValidationOutcome{}, fmt.Errorf("unexpected validator reply %q", line)
	}
}
