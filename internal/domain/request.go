package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CreateRequest is one incoming alert creation payload.
// Params: caller-supplied alert fields before id/status assignment.
// Returns: validated input for manager Create.
type CreateRequest struct {
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Severity string            `json:"severity"`
	Category string            `json:"category"`
	Source   string            `json:"source"`
	DedupKey string            `json:"dedup_key,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DecodeCreateRequest decodes and validates one creation payload.
// Params: JSON document bytes.
// Returns: validated request or decode/validation error.
func DecodeCreateRequest(raw []byte) (CreateRequest, error) {
	var request CreateRequest
	if err := json.Unmarshal(raw, &request); err != nil {
		return CreateRequest{}, fmt.Errorf("decode create request: %w", err)
	}
	if err := request.Validate(); err != nil {
		return CreateRequest{}, err
	}
	return request, nil
}

// Validate checks required creation fields.
// Params: none.
// Returns: first validation error.
func (r CreateRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("create request requires title")
	}
	if strings.TrimSpace(r.Message) == "" {
		return errors.New("create request requires message")
	}
	if _, ok := ParseSeverity(r.Severity); !ok {
		return fmt.Errorf("create request has unknown severity %q", r.Severity)
	}
	if strings.TrimSpace(r.Category) == "" {
		return errors.New("create request requires category")
	}
	if strings.TrimSpace(r.Source) == "" {
		return errors.New("create request requires source")
	}
	return nil
}

// ActorRequest carries actor identity for acknowledge/resolve calls.
// Params: actor identifier and optional resolution notes.
// Returns: validated transition payload.
type ActorRequest struct {
	Actor string `json:"actor"`
	Notes string `json:"notes,omitempty"`
}

// DecodeActorRequest decodes and validates one transition payload.
// Params: JSON document bytes.
// Returns: validated request or decode/validation error.
func DecodeActorRequest(raw []byte) (ActorRequest, error) {
	var request ActorRequest
	if err := json.Unmarshal(raw, &request); err != nil {
		return ActorRequest{}, fmt.Errorf("decode actor request: %w", err)
	}
	if strings.TrimSpace(request.Actor) == "" {
		return ActorRequest{}, errors.New("actor request requires actor")
	}
	return request, nil
}
