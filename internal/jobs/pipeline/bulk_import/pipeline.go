package bulk_import

import (
	"fmt"

	"github.com/google/uuid"

	jobrt "github.com/yungbote/tutorloop-backend/internal/jobs/runtime"
)

type Enrollment struct {
	StudentID uuid.UUID   `json:"student_id" validate:"required"`
	DeckIDs   []uuid.UUID `json:"deck_ids" validate:"required_without=CardIDs,omitempty,min=1"`
	CardIDs   []uuid.UUID `json:"card_ids" validate:"required_without=DeckIDs,omitempty,min=1"`
}

type Payload struct {
	Enrollments []Enrollment `json:"enrollments" validate:"required,min=1,dive"`
}

type studentResult struct {
	StudentID string `json:"student_id"`
	Created   int64  `json:"created"`
	Skipped   int64  `json:"skipped"`
}

// Run authorizes every student before writing anything, then enrolls each
// student in its own transaction. A failure stops the job; students already
// enrolled stay enrolled and a rerun skips their existing states.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var in Payload
	if err := jc.DecodePayload(&in); err != nil {
		jc.Fail("validate", err)
		return nil
	}
	for _, e := range in.Enrollments {
		if err := p.auth.Authorize(jc.DBC(), jc.Job.OwnerUserID, e.StudentID); err != nil {
			jc.Fail("authorize", err)
			return nil
		}
	}

	results := make([]studentResult, 0, len(in.Enrollments))
	var created, skipped int64
	for i, e := range in.Enrollments {
		res := studentResult{StudentID: e.StudentID.String()}
		for _, deckID := range e.DeckIDs {
			deckID := deckID
			report, err := p.engine.InitializeCards(jc.DBC(), e.StudentID, &deckID, nil)
			if err != nil {
				jc.Fail("import", fmt.Errorf("student %s deck %s: %w", e.StudentID, deckID, err))
				return nil
			}
			res.Created += report.Created
			res.Skipped += report.Skipped
		}
		if len(e.CardIDs) > 0 {
			report, err := p.engine.InitializeCards(jc.DBC(), e.StudentID, nil, e.CardIDs)
			if err != nil {
				jc.Fail("import", fmt.Errorf("student %s cards: %w", e.StudentID, err))
				return nil
			}
			res.Created += report.Created
			res.Skipped += report.Skipped
		}
		created += res.Created
		skipped += res.Skipped
		results = append(results, res)
		jc.Progress("import", (i+1)*100/len(in.Enrollments), fmt.Sprintf("Imported %d of %d students", i+1, len(in.Enrollments)))
	}

	jc.Succeed("done", map[string]any{
		"students": results,
		"created":  created,
		"skipped":  skipped,
	})
	return nil
}
