package cache_rebuild

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

	jc.Progress("replay", 10, "Replaying review ledger")
	report, err := p.engine.RebuildFromLedger(jc.DBC(), in.StudentID)
	if err != nil {
		jc.Fail("replay", err)
		return nil
	}
	if report.SnapshotMismatches > 0 {
		p.log.Warn("ledger snapshots disagree with replay", "student_id", in.StudentID, "mismatches", report.SnapshotMismatches)
	}
	jc.Succeed("done", report)
	return nil
}
