package capsule

import (
	"fmt"
	"slices"
	"strings"
)

// ChoicesPerQuestion is the number of choices every quiz question carries.
const ChoicesPerQuestion = 4

// LintResult contains the results of linting an authored capsule.
type LintResult struct {
	Valid    bool
	Problems []string
}

// Lint checks an authored capsule before it is saved.
// Imports are gated by ValidateImported instead; Lint is stricter about quiz shape.
func Lint(c *Capsule) *LintResult {
	result := &LintResult{Valid: true}
	if c == nil {
		result.Valid = false
		result.Problems = []string{"capsule is required"}
		return result
	}

	if strings.TrimSpace(c.Meta.Title) == "" {
		result.Problems = append(result.Problems, "title is required")
	}

	for i, f := range c.Flashcards {
		if strings.TrimSpace(f.Front) == "" || strings.TrimSpace(f.Back) == "" {
			result.Problems = append(result.Problems, fmt.Sprintf("flashcard %d needs both front and back", i+1))
		}
	}

	for i, q := range c.Quiz {
		if strings.TrimSpace(q.Question) == "" {
			result.Problems = append(result.Problems, fmt.Sprintf("question %d has no text", i+1))
		}
		if len(q.Choices) != ChoicesPerQuestion {
			result.Problems = append(result.Problems,
				fmt.Sprintf("question %d has %d choices, want %d", i+1, len(q.Choices), ChoicesPerQuestion))
		}
		if q.Answer < 0 || q.Answer >= ChoicesPerQuestion {
			result.Problems = append(result.Problems, fmt.Sprintf("question %d answer must be 0-3", i+1))
		}
	}

	result.Valid = len(result.Problems) == 0
	return result
}

// IsKnownLevel reports whether level is one of the suggested Levels (case-insensitive).
func IsKnownLevel(level string) bool {
	return slices.ContainsFunc(Levels, func(l string) bool {
		return strings.EqualFold(l, strings.TrimSpace(level))
	})
}
