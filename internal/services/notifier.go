package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/realtime"
	"github.com/yungbote/tutorloop-backend/internal/realtime/bus"
)

const publishTimeout = 2 * time.Second

type JobNotifier interface {
	JobCreated(ownerID uuid.UUID, job *types.JobRun)
	JobProgress(ownerID uuid.UUID, job *types.JobRun, stage string, progress int, message string)
	JobFailed(ownerID uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobDone(ownerID uuid.UUID, job *types.JobRun)
}

// SessionNotifier is called after the session transaction commits.
type SessionNotifier interface {
	SessionStarted(session *types.Session)
	SessionAdvanced(session *types.Session, position int)
	SessionCompleted(session *types.Session)
}

// publisher sends on the bus and only logs failures; realtime delivery is
// best effort.
type publisher struct {
	bus bus.Bus
	log *logger.Logger
}

func (p *publisher) publish(channel uuid.UUID, event realtime.Event, data map[string]any) {
	if p == nil || p.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	msg := realtime.Message{Channel: channel.String(), Event: event, Data: data}
	if err := p.bus.Publish(ctx, msg); err != nil {
		p.log.Warn("realtime publish failed", "event", event, "error", err)
	}
}

type jobNotifier struct{ p *publisher }

func NewJobNotifier(b bus.Bus, baseLog *logger.Logger) JobNotifier {
	return &jobNotifier{p: &publisher{bus: b, log: baseLog.With("service", "JobNotifier")}}
}

func (n *jobNotifier) JobCreated(ownerID uuid.UUID, job *types.JobRun) {
	n.p.publish(ownerID, realtime.EventJobCreated, map[string]any{"job": job})
}

func (n *jobNotifier) JobProgress(ownerID uuid.UUID, job *types.JobRun, stage string, progress int, message string) {
	n.p.publish(ownerID, realtime.EventJobProgress, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *jobNotifier) JobFailed(ownerID uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	n.p.publish(ownerID, realtime.EventJobFailed, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"error":    errorMessage,
	})
}

func (n *jobNotifier) JobDone(ownerID uuid.UUID, job *types.JobRun) {
	n.p.publish(ownerID, realtime.EventJobDone, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"result":   job.Result,
	})
}

type sessionNotifier struct{ p *publisher }

func NewSessionNotifier(b bus.Bus, baseLog *logger.Logger) SessionNotifier {
	return &sessionNotifier{p: &publisher{bus: b, log: baseLog.With("service", "SessionNotifier")}}
}

func sessionData(s *types.Session) map[string]any {
	return map[string]any{
		"session_id":          s.ID,
		"student_id":          s.StudentID,
		"unit_id":             s.UnitID,
		"status":              s.Status,
		"current_exercise_id": s.CurrentExerciseID,
	}
}

func (n *sessionNotifier) SessionStarted(s *types.Session) {
	n.p.publish(s.TeacherID, realtime.EventSessionStarted, sessionData(s))
}

func (n *sessionNotifier) SessionAdvanced(s *types.Session, position int) {
	data := sessionData(s)
	data["position"] = position
	n.p.publish(s.TeacherID, realtime.EventSessionAdvanced, data)
}

func (n *sessionNotifier) SessionCompleted(s *types.Session) {
	data := sessionData(s)
	data["end_time"] = s.EndTime
	n.p.publish(s.TeacherID, realtime.EventSessionCompleted, data)
}
