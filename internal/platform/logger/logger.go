package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yungbote/tutorloop-backend/internal/platform/ctxutil"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	red           *redactor
}

type Option func(*redactor)

// WithRedaction toggles masking of secrets and hashing of learner and
// teacher ids. Salt is mixed into the id hashes. Redaction is on by default.
func WithRedaction(enabled bool, salt string) Option {
	return func(r *redactor) {
		r.enabled = enabled
		r.salt = strings.TrimSpace(salt)
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), red: &redactor{}}
}

// New builds a zap logger. Modes: "production", "test" (warn and above),
// anything else is development at debug level.
func New(mode string, opts ...Option) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "test":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return FromZap(zapLogger, opts...), nil
}

func FromZap(z *zap.Logger, opts ...Option) *Logger {
	r := &redactor{enabled: true}
	for _, opt := range opts {
		opt(r)
	}
	return &Logger{SugaredLogger: z.Sugar(), red: r}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.red.kvs(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.red.kvs(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.red.kvs(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.red.kvs(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, l.red.kvs(keysAndValues)...)
}

func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.red.kvs(keysAndValues)...), red: l.red}
}

// WithTrace adds the trace and request ids carried by ctx, if any.
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	td := ctxutil.GetTraceData(ctx)
	if td == nil {
		return l
	}
	kv := make([]interface{}, 0, 4)
	if td.TraceID != "" {
		kv = append(kv, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		kv = append(kv, "request_id", td.RequestID)
	}
	if len(kv) == 0 {
		return l
	}
	return l.With(kv...)
}

type redactor struct {
	enabled bool
	salt    string
}

var redactKeys = []string{"token", "authorization", "password", "secret", "cookie", "dsn", "api_key"}

// Ids that identify people or their work are hashed so log lines can still be
// correlated.
var hashKeys = []string{"student_id", "teacher_id", "owner_user_id", "session_id"}

func (r *redactor) kvs(kv []interface{}) []interface{} {
	if r == nil || !r.enabled || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		out = append(out, kv[i], r.value(normalizeKey(kv[i]), kv[i+1]))
	}
	return out
}

func (r *redactor) value(key string, val interface{}) interface{} {
	switch {
	case key == "":
	case matchesAny(key, redactKeys):
		return "[REDACTED]"
	case matchesAny(key, hashKeys):
		return r.hash(val)
	}
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = r.value(normalizeKey(k), inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, inner := range v {
			out = append(out, r.value("", inner))
		}
		return out
	case string:
		if looksLikeJWT(v) {
			return "[REDACTED]"
		}
	}
	return val
}

func (r *redactor) hash(val interface{}) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	h := sha256.New()
	_, _ = h.Write([]byte(r.salt))
	_, _ = h.Write([]byte(raw))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

func matchesAny(key string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(key, n) {
			return true
		}
	}
	return false
}

func normalizeKey(k interface{}) string {
	return strings.ToLower(strings.TrimSpace(toString(k)))
}

func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
