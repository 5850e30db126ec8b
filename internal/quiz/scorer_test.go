package quiz

import (
	"encoding/json"
	"reflect"
	"testing"
)

func answerKey(bank Bank) map[string]any {
	answers := make(map[string]any, len(bank))
	for _, question := range bank {
		answers[question.ID] = float64(question.CorrectIndex)
	}
	return answers
}

func TestScoreAllCorrectPasses(t *testing.T) {
	bank := DefaultBank()
	result := Score(bank, answerKey(bank), DefaultPassingScore)

	if result.Score != 100 || !result.Passed || result.CorrectCount != 10 || result.TotalQuestions != 10 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestScoreSevenOfTenFails(t *testing.T) {
	bank := DefaultBank()
	answers := answerKey(bank)
	for _, question := range bank[:3] {
		answers[question.ID] = float64((question.CorrectIndex + 1) % len(question.Options))
	}

	result := Score(bank, answers, DefaultPassingScore)
	if result.Score != 70 || result.Passed || result.CorrectCount != 7 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Results[0].Correct || !result.Results[9].Correct {
		t.Fatalf("unexpected per-question results %+v", result.Results)
	}
}

func TestScoreTreatsMalformedAnswersAsIncorrect(t *testing.T) {
	bank := Bank{
		{ID: "q1", Options: []string{"a", "b"}, CorrectIndex: 1},
		{ID: "q2", Options: []string{"a", "b"}, CorrectIndex: 0},
		{ID: "q3", Options: []string{"a", "b", "c"}, CorrectIndex: 2},
	}

	testCases := []struct {
		name        string
		answer      any
		wantCorrect bool
	}{
		{name: "numeric-string", answer: " 1 ", wantCorrect: true},
		{name: "json-number", answer: json.Number("1"), wantCorrect: true},
		{name: "fraction", answer: 1.5, wantCorrect: false},
		{name: "negative", answer: -1.0, wantCorrect: false},
		{name: "out-of-range", answer: 7.0, wantCorrect: false},
		{name: "word", answer: "one", wantCorrect: false},
		{name: "bool", answer: true, wantCorrect: false},
		{name: "null", answer: nil, wantCorrect: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			result := Score(bank, map[string]any{"q1": testCase.answer}, 50)
			if result.Results[0].Correct != testCase.wantCorrect {
				t.Fatalf("expected correct=%v, got %+v", testCase.wantCorrect, result.Results[0])
			}
			if !testCase.wantCorrect && result.Results[0].Selected != nil && *result.Results[0].Selected == 1 {
				t.Fatalf("malformed answer parsed as a valid selection")
			}
		})
	}

	rounded := Score(bank, map[string]any{"q1": 1.0, "q2": 0.0}, 67)
	if rounded.Score != 67 || !rounded.Passed {
		t.Fatalf("expected 2/3 to round to 67, got %+v", rounded)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	bank := DefaultBank()
	answers := map[string]any{"icp-definition": "1", "value-proposition": 0.0, "battlecard-landmines": "x"}

	first := Score(bank, answers, DefaultPassingScore)
	for attempt := 0; attempt < 5; attempt++ {
		if again := Score(bank, answers, DefaultPassingScore); !reflect.DeepEqual(first, again) {
			t.Fatalf("score changed between calls: %+v vs %+v", first, again)
		}
	}
}

func TestPublicQuestionsStripAnswerKey(t *testing.T) {
	bank := DefaultBank()
	questions := bank.PublicQuestions()
	if len(questions) != len(bank) {
		t.Fatalf("expected %d questions, got %d", len(bank), len(questions))
	}
	if reflect.TypeOf(PublicQuestion{}).NumField() != 3 {
		t.Fatalf("public questions must only expose id, prompt and options")
	}
	questions[0].Options[0] = "mutated"
	if bank[0].Options[0] == "mutated" {
		t.Fatalf("public questions must not alias the bank")
	}
}
