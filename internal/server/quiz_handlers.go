package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/quiz"
	"github.com/gin-gonic/gin"
)

type questionPayload struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type attemptPayload struct {
	ID             string          `json:"id"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"totalQuestions"`
	Passed         bool            `json:"passed"`
	Answers        json.RawMessage `json:"answers"`
	CompletedAt    time.Time       `json:"completedAt"`
}

type questionResultPayload struct {
	QuestionID   string `json:"questionId"`
	Selected     *int   `json:"selected"`
	CorrectIndex int    `json:"correctIndex"`
	Correct      bool   `json:"correct"`
	Explanation  string `json:"explanation"`
}

type submitQuizRequestPayload struct {
	Answers map[string]any `json:"answers"`
}

type submitQuizResponsePayload struct {
	Score          int                     `json:"score"`
	Passed         bool                    `json:"passed"`
	CorrectCount   int                     `json:"correctCount"`
	TotalQuestions int                     `json:"totalQuestions"`
	Results        []questionResultPayload `json:"results"`
	Attempt        attemptPayload          `json:"attempt"`
}

func newAttemptPayload(attempt quiz.Attempt) attemptPayload {
	return attemptPayload{
		ID:             attempt.ID,
		Score:          attempt.Score,
		TotalQuestions: attempt.TotalQuestions,
		Passed:         attempt.Passed,
		Answers:        json.RawMessage(attempt.Answers),
		CompletedAt:    attempt.CompletedAt,
	}
}

func (h *httpHandler) handleGetQuiz(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	attempts, err := h.quiz.Attempts(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	passed, err := h.quiz.HasPassed(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	attemptPayloads := make([]attemptPayload, 0, len(attempts))
	for _, attempt := range attempts {
		attemptPayloads = append(attemptPayloads, newAttemptPayload(attempt))
	}
	questions := h.quiz.Questions()
	questionPayloads := make([]questionPayload, 0, len(questions))
	for _, question := range questions {
		questionPayloads = append(questionPayloads, questionPayload{
			ID:      question.ID,
			Prompt:  question.Prompt,
			Options: question.Options,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"attempts":     attemptPayloads,
		"questions":    questionPayloads,
		"hasPassed":    passed,
		"passingScore": h.quiz.PassingScore(),
	})
}

func (h *httpHandler) handleSubmitQuiz(c *gin.Context) {
	var request submitQuizRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidBody(c)
		return
	}
	result, attempt, err := h.quiz.Submit(c.Request.Context(), c.GetString(userIDContextKey), request.Answers)
	if err != nil {
		h.respondError(c, err)
		return
	}

	results := make([]questionResultPayload, 0, len(result.Results))
	for _, item := range result.Results {
		results = append(results, questionResultPayload{
			QuestionID:   item.QuestionID,
			Selected:     item.Selected,
			CorrectIndex: item.CorrectIndex,
			Correct:      item.Correct,
			Explanation:  item.Explanation,
		})
	}
	c.JSON(http.StatusOK, submitQuizResponsePayload{
		Score:          result.Score,
		Passed:         result.Passed,
		CorrectCount:   result.CorrectCount,
		TotalQuestions: result.TotalQuestions,
		Results:        results,
		Attempt:        newAttemptPayload(attempt),
	})
}
