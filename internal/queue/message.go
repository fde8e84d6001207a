// Package queue carries embed requests from the API to the embedding workers.
// Delivery is at-least-once and unordered; workers rely on the job store's
// claim, not on the queue, for exclusivity.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/go-playground/validator/v10"
)

const EmbedRequestType = "embed_request"

// ErrUnknownMessageType is returned for well-formed messages addressed to
// another consumer.
var ErrUnknownMessageType = errors.New("unknown message type")

type EmbedRequest struct {
	Type  string `json:"type" validate:"required"`
	JobID string `json:"job_id" validate:"required,uuid"`
	Term  string `json:"term" validate:"required"`
}

func NewEmbedRequest(jobID, term string) EmbedRequest {
	return EmbedRequest{Type: EmbedRequestType, JobID: jobID, Term: term}
}

func (r EmbedRequest) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

var validate = validator.New()

// DecodeEmbedRequest parses and validates a queue payload.
func DecodeEmbedRequest(payload []byte) (EmbedRequest, error) {
	var req EmbedRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return EmbedRequest{}, apperror.Wrap(apperror.KindValidation, "malformed embed request", err)
	}
	if req.Type != "" && req.Type != EmbedRequestType {
		return req, fmt.Errorf("%w: %q", ErrUnknownMessageType, req.Type)
	}
	if err := validate.Struct(req); err != nil {
		return req, apperror.NewValidation("invalid embed request", fieldErrors(err))
	}
	return req, nil
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[fe.Field()] = fe.Tag()
		}
	}
	return out
}
