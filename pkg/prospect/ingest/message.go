package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// SchemaVersion is the only message version accepted.
const SchemaVersion = 3

// MessageType is the only message kind accepted.
const MessageType = "prospect"

// Message is one candidate batch produced by a generation run.
type Message struct {
	ID         string      `json:"id" validate:"required"`
	Version    int         `json:"version"`
	Candidates []Candidate `json:"candidates" validate:"required,min=1,dive"`
	Type       string      `json:"type"`
	Flow       string      `json:"flow"`
	Run        string      `json:"run"`
	ExpiresAt  int64       `json:"expires_at"`
}

// Candidate is one entry of a Message. It maps 1:1 to a CandidateRecord.
type Candidate struct {
	ProspectID           string `json:"prospect_id" validate:"required"`
	ScheduledSurfaceGUID string `json:"scheduled_surface_guid" validate:"required"`
	PredictedTopic       string `json:"predicted_topic"`
	ProspectSource       string `json:"prospect_source" validate:"required,candidate_type"`
	URL                  string `json:"url" validate:"required,http_url"`
	SaveCount            int    `json:"save_count" validate:"gte=0"`
	Rank                 int    `json:"rank"`
}

// Partition returns the retention partition of the candidate.
func (c *Candidate) Partition() prospect.Partition {
	return prospect.Partition{
		SurfaceGUID:   c.ScheduledSurfaceGUID,
		CandidateType: prospect.CandidateType(c.ProspectSource),
	}
}

// DecodeMessage decodes one JSON message. Unknown fields are rejected.
func DecodeMessage(r io.Reader) (*Message, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var msg Message
	if err := dec.Decode(&msg); err != nil {
		return nil, prospect.NewValidationError("message", fmt.Sprintf("invalid json: %v", err))
	}
	if dec.More() {
		return nil, prospect.NewValidationError("message", "unexpected data after message")
	}
	return &msg, nil
}

// newValidator builds a validator that reports JSON field names and accepts
// only the allowed candidate types.
func newValidator(allowed map[prospect.CandidateType]bool) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("candidate_type", func(fl validator.FieldLevel) bool {
		t := prospect.CandidateType(fl.Field().String())
		if !t.Valid() {
			return false
		}
		return len(allowed) == 0 || allowed[t]
	})

	return v
}

// validateMessage checks the envelope and every candidate.
func validateMessage(v *validator.Validate, msg *Message) error {
	if msg == nil {
		return prospect.NewValidationError("message", "message is nil")
	}
	if msg.Version != SchemaVersion {
		return prospect.NewValidationError("version",
			fmt.Sprintf("unsupported schema version %d, want %d", msg.Version, SchemaVersion))
	}
	if msg.Type != MessageType {
		return prospect.NewValidationError("type",
			fmt.Sprintf("unsupported message type %q, want %q", msg.Type, MessageType))
	}

	err := v.Struct(msg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return prospect.NewValidationError("message", err.Error())
	}

	fe := fieldErrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "Message.")
	return prospect.NewValidationError(field, describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s, got %v", fe.Param(), fe.Value())
	case "http_url":
		return fmt.Sprintf("must be an absolute http(s) url, got %q", fe.Value())
	case "candidate_type":
		return fmt.Sprintf("unsupported candidate type %q", fe.Value())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
