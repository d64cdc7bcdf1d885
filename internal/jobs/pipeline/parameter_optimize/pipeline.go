package parameter_optimize

import (
	"github.com/google/uuid"

	jobrt "github.com/yungbote/tutorloop-backend/internal/jobs/runtime"
)

type Payload struct {
	StudentID uuid.UUID `json:"student_id" validate:"required"`
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

	jc.Progress("fit", 10, "Fitting scheduling parameters")
	report, err := p.engine.OptimizeParameters(jc.DBC(), in.StudentID)
	if err != nil {
		jc.Fail("fit", err)
		return nil
	}
	jc.Succeed("done", report)
	return nil
}
