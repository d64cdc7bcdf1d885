package runtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/go-playground/validator/v10"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
)

// traceKeys are added to every payload at enqueue time and are not part of
// any pipeline's schema.
var traceKeys = []string{"trace_id", "request_id"}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func payloadValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// DecodePayload strictly decodes the job payload into dst and runs its
// validate tags. Any failure is an *InvalidPayloadError.
func (c *Context) DecodePayload(dst any) error {
	jobType := ""
	var raw []byte
	if c.Job != nil {
		jobType = string(c.Job.JobType)
		raw = c.Job.Payload
	}
	if err := DecodePayload(raw, dst); err != nil {
		return &types.InvalidPayloadError{JobType: jobType, Err: err}
	}
	return nil
}

func DecodePayload(raw []byte, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("payload must be a JSON object: %w", err)
	}
	for _, k := range traceKeys {
		delete(fields, k)
	}
	stripped, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(stripped))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after payload")
	}
	return payloadValidator().Struct(dst)
}
