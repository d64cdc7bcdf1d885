package observability

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

// Metrics is the process-wide registry. All methods are safe on a nil
// receiver so callers never need to check whether metrics are enabled.
type Metrics struct {
	apiRequests    *Vec
	apiLatency     *HistogramVec
	apiInflight    *Vec
	reviews        *Vec
	sessionEvents  *Vec
	exerciseAction *Vec
	jobRuns        *Vec
	jobDuration    *HistogramVec
	jobQueueDepth  *Vec
}

var (
	metricsOnce sync.Once
	current     *Metrics
)

func Init() *Metrics {
	metricsOnce.Do(func() {
		current = &Metrics{
			apiRequests:    NewCounterVec("tutorloop_api_requests_total", "HTTP requests by route and status.", "method", "route", "status"),
			apiLatency:     NewHistogramVec("tutorloop_api_request_seconds", "HTTP request latency.", nil, "method", "route"),
			apiInflight:    NewGaugeVec("tutorloop_api_inflight", "HTTP requests in flight."),
			reviews:        NewCounterVec("tutorloop_reviews_total", "Recorded reviews by rating and resulting state.", "rating", "state"),
			sessionEvents:  NewCounterVec("tutorloop_session_events_total", "Session lifecycle transitions.", "event"),
			exerciseAction: NewCounterVec("tutorloop_exercise_actions_total", "Exercise actions by type, action and outcome.", "exercise_type", "action", "outcome"),
			jobRuns:        NewCounterVec("tutorloop_job_runs_total", "Finished job runs by type and status.", "job_type", "status"),
			jobDuration:    NewHistogramVec("tutorloop_job_run_seconds", "Job run duration.", []float64{0.1, 0.5, 1, 5, 15, 60, 300}, "job_type"),
			jobQueueDepth:  NewGaugeVec("tutorloop_job_queue_depth", "Job runs by status.", "status"),
		}
	})
	return current
}

// Current returns the registry, or nil before Init.
func Current() *Metrics { return current }

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

func (m *Metrics) IncReview(rating int, state string) {
	if m == nil {
		return
	}
	m.reviews.Inc(strconv.Itoa(rating), state)
}

func (m *Metrics) IncSessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessionEvents.Inc(event)
}

func (m *Metrics) IncExerciseAction(exerciseType, action, outcome string) {
	if m == nil {
		return
	}
	m.exerciseAction.Inc(exerciseType, action, outcome)
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.Inc(jobType, status)
	m.jobDuration.Observe(dur.Seconds(), jobType)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.reviews, m.sessionEvents, m.exerciseAction,
		m.jobRuns, m.jobDuration, m.jobQueueDepth,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = w.Write(buf.Bytes())
}

// StartJobQueueCollector samples job_run counts by status until ctx ends.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, every time.Duration) {
	if m == nil || db == nil {
		return
	}
	if every <= 0 {
		every = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			m.collectJobQueue(ctx, log, db)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (m *Metrics) collectJobQueue(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	var rows []struct {
		Status string
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&types.JobRun{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		if log != nil && ctx.Err() == nil {
			log.Warn("job queue collector failed", "error", err)
		}
		return
	}
	for _, r := range rows {
		m.jobQueueDepth.Set(float64(r.N), r.Status)
	}
}
