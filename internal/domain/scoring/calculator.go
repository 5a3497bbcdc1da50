package scoring

import (
	"github.com/google/uuid"
)

// AnswerInput is one answer as the calculator sees it. Score, when already
// resolved by intake, is reused; otherwise it is resolved from the bucket
// under the age protocol.
type AnswerInput struct {
	QuestionID uuid.UUID
	Bucket     string
	Score      *int
}

// QuestionInput is the metadata the calculator needs for one question.
type QuestionInput struct {
	ID         uuid.UUID
	IsScorable bool
	Logic      *Logic
}

// Input is everything needed to score one completed session. Questions
// must include every scorable question reachable by the session's form,
// answered or not, since the maximum is computed over all of them.
type Input struct {
	Completed bool
	AgeMonths int
	Answers   []AnswerInput
	Questions []QuestionInput
}

// Result is the authoritative score pair plus any coverage gaps hit while
// computing it.
type Result struct {
	TotalScore       int
	MaxPossibleScore int
	Gaps             []Gap
}

// Calculator computes a session's total and maximum possible score. It is
// pure: the same input always yields the same result.
type Calculator struct{}

// Score computes the score pair for one session.
//
// Total is the sum of answer scores on scorable questions. Max is the sum,
// over every scorable question in the input, of the highest score its rule
// allows under the child's age protocol. A question with no coverage for
// the age or bucket contributes zero to both and is recorded as a gap.
// An answer referencing an unknown question is fatal for the session.
func (Calculator) Score(in Input) (*Result, error) {
	if !in.Completed {
		return nil, &PreconditionError{Op: "score", Reason: "session is not completed"}
	}

	byID := make(map[uuid.UUID]QuestionInput, len(in.Questions))
	for _, q := range in.Questions {
		byID[q.ID] = q
	}

	res := &Result{}

	for _, a := range in.Answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return nil, &MissingQuestionError{QuestionID: a.QuestionID}
		}
		if !q.IsScorable {
			continue
		}
		if a.Score != nil {
			res.TotalScore += *a.Score
			continue
		}
		if q.Logic == nil {
			// gap recorded once, on the max pass
			continue
		}
		score, ok := ResolveScore(q.Logic, in.AgeMonths, a.Bucket)
		if !ok {
			// No age coverage is recorded once, on the max pass below.
			if _, covered := ResolveProtocol(q.Logic, in.AgeMonths); covered {
				res.Gaps = append(res.Gaps, Gap{QuestionID: q.ID, Kind: GapNoBucket, Bucket: a.Bucket})
			}
			continue
		}
		res.TotalScore += score
	}

	for _, q := range in.Questions {
		if !q.IsScorable {
			continue
		}
		if q.Logic == nil {
			res.Gaps = append(res.Gaps, Gap{QuestionID: q.ID, Kind: GapNoRule})
			continue
		}
		max, ok := MaxScore(q.Logic, in.AgeMonths)
		if !ok {
			res.Gaps = append(res.Gaps, Gap{QuestionID: q.ID, Kind: GapNoBracket})
			continue
		}
		res.MaxPossibleScore += max
	}

	return res, nil
}
