package ops

import (
	"context"
	"fmt"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/errors"
)

// Unanswered marks a question the learner skipped.
const Unanswered = -1

// QuestionResult is the grading of one quiz question.
type QuestionResult struct {
	Index       int    `json:"index"`
	Chosen      int    `json:"chosen"`
	Answer      int    `json:"answer"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
}

// QuizResult is the grading of a whole attempt.
type QuizResult struct {
	Correct   int              `json:"correct"`
	Total     int              `json:"total"`
	Score     int              `json:"score"` // percentage, rounded
	Questions []QuestionResult `json:"questions"`
}

// GradeQuiz grades answers against c's quiz. answers[i] is the chosen choice
// for question i; missing trailing answers count as Unanswered.
func GradeQuiz(c *capsule.Capsule, answers []int) (*QuizResult, error) {
	if c == nil || len(c.Quiz) == 0 {
		return nil, errors.NewInvalidRequest("capsule has no quiz")
	}
	if len(answers) > len(c.Quiz) {
		return nil, errors.NewInvalidRequest(
			fmt.Sprintf("got %d answers for %d questions", len(answers), len(c.Quiz)))
	}

	res := &QuizResult{Total: len(c.Quiz), Questions: make([]QuestionResult, 0, len(c.Quiz))}
	for i, q := range c.Quiz {
		chosen := Unanswered
		if i < len(answers) {
			chosen = answers[i]
		}
		ok := chosen != Unanswered && chosen == q.Answer
		if ok {
			res.Correct++
		}
		res.Questions = append(res.Questions, QuestionResult{
			Index:       i,
			Chosen:      chosen,
			Answer:      q.Answer,
			Correct:     ok,
			Explanation: q.Explanation,
		})
	}
	res.Score = (res.Correct*100 + res.Total/2) / res.Total
	return res, nil
}

// SubmitQuizOutput is a graded attempt plus the updated progress.
type SubmitQuizOutput struct {
	ID       string           `json:"id"`
	Result   *QuizResult      `json:"result"`
	Progress capsule.Progress `json:"progress"`
}

// SubmitQuiz grades answers for the capsule stored under id and records the
// score, keeping the best one.
func SubmitQuiz(ctx context.Context, l Learner, id string, answers []int) (*SubmitQuizOutput, error) {
	fetched, err := Fetch(ctx, l, id)
	if err != nil {
		return nil, err
	}
	res, err := GradeQuiz(fetched.Capsule, answers)
	if err != nil {
		return nil, err
	}
	p, err := l.RecordQuizScore(ctx, fetched.ID, res.Score)
	if err != nil {
		return nil, errors.Wrap(err)
	}
	return &SubmitQuizOutput{ID: fetched.ID, Result: res, Progress: p}, nil
}
