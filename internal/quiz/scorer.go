package quiz

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// QuestionResult reports the outcome for one question.
type QuestionResult struct {
	QuestionID   string
	Selected     *int
	CorrectIndex int
	Correct      bool
	Explanation  string
}

// Result is the outcome of scoring one submission.
type Result struct {
	Score          int
	Passed         bool
	CorrectCount   int
	TotalQuestions int
	Results        []QuestionResult
}

// Score grades answers against the bank. Selections may be JSON numbers or numeric strings;
// anything missing or malformed counts as incorrect. Score is deterministic for equal inputs.
func Score(bank Bank, answers map[string]any, passingScore int) Result {
	result := Result{
		TotalQuestions: len(bank),
		Results:        make([]QuestionResult, 0, len(bank)),
	}
	for _, question := range bank {
		selected := parseSelection(answers[question.ID], len(question.Options))
		correct := selected != nil && *selected == question.CorrectIndex
		if correct {
			result.CorrectCount++
		}
		result.Results = append(result.Results, QuestionResult{
			QuestionID:   question.ID,
			Selected:     selected,
			CorrectIndex: question.CorrectIndex,
			Correct:      correct,
			Explanation:  question.Explanation,
		})
	}
	if result.TotalQuestions > 0 {
		result.Score = int(math.Round(100 * float64(result.CorrectCount) / float64(result.TotalQuestions)))
	}
	result.Passed = result.Score >= passingScore
	return result
}

func parseSelection(raw any, optionCount int) *int {
	var value float64
	switch typed := raw.(type) {
	case float64:
		value = typed
	case int:
		value = float64(typed)
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return nil
		}
		value = parsed
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return nil
		}
		value = float64(parsed)
	default:
		return nil
	}
	if value != math.Trunc(value) || value < 0 || value >= float64(optionCount) {
		return nil
	}
	index := int(value)
	return &index
}
