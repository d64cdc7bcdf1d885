package card_state_init

import (
	"github.com/google/uuid"

	jobrt "github.com/yungbote/tutorloop-backend/internal/jobs/runtime"
)

type Payload struct {
	StudentID uuid.UUID   `json:"student_id" validate:"required"`
	DeckID    *uuid.UUID  `json:"deck_id" validate:"required_without=CardIDs"`
	CardIDs   []uuid.UUID `json:"card_ids" validate:"required_without=DeckID,omitempty,min=1"`
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var in Payload
	if err := jc.DecodePayload(&in); err != nil {
		jc.Fail("validate", err)
		return nil
	}
	if err := p.auth.Authorize(jc.DBC(), jc.Job.OwnerUserID, in.StudentID); err != nil {
		jc.Fail("authorize", err)
		return nil
	}

	jc.Progress("initialize", 10, "Creating card states")
	report, err := p.engine.InitializeCards(jc.DBC(), in.StudentID, in.DeckID, in.CardIDs)
	if err != nil {
		jc.Fail("initialize", err)
		return nil
	}
	jc.Succeed("done", map[string]any{
		"student_id": in.StudentID.String(),
		"created":    report.Created,
		"skipped":    report.Skipped,
	})
	return nil
}
