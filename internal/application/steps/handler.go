package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
	"github.com/garyjia/medallion-bpm/pkg/utils"
)

// Operation is what a handler does with a step
type Operation string

const (
	OperationFetch   Operation = "fetch"
	OperationProcess Operation = "process"
)

// IsValid returns true for the known operations
func (o Operation) IsValid() bool {
	return o == OperationFetch || o == OperationProcess
}

// Key identifies one handler
type Key struct {
	StepID    string
	Operation Operation
}

func (k Key) String() string {
	return k.StepID + "-" + string(k.Operation)
}

// Request is what the engine hands a step handler. Payload is set for
// process, Params (the caller's query parameters) for fetch.
type Request struct {
	CaseNo  string
	Payload json.RawMessage
	Params  map[string]string
	Actor   entity.Actor
}

// HandlerFunc runs one step operation. The result is serialized as is.
type HandlerFunc func(ctx context.Context, req Request) (interface{}, error)

// Handler is a registered step operation
type Handler struct {
	Key
	Name string
	Fn   HandlerFunc
}

var validate = utils.NewValidator()

// Process adapts a typed process function. The payload is decoded into In,
// rejecting unknown fields, and validated before fn runs.
func Process[In any, Out any](stepID, name string, fn func(ctx context.Context, caseNo string, in In) (Out, error)) Handler {
	return Handler{
		Key:  Key{StepID: stepID, Operation: OperationProcess},
		Name: name,
		Fn: func(ctx context.Context, req Request) (interface{}, error) {
			var in In
			if err := decodeStrict(req.Payload, &in); err != nil {
				return nil, fmt.Errorf("%w: step %s: %v", domainwf.ErrInvalidPayload, stepID, err)
			}
			if err := validateInput(in); err != nil {
				return nil, fmt.Errorf("%w: step %s: %s", domainwf.ErrInvalidPayload, stepID, utils.FormatValidationError(err))
			}
			return fn(ctx, req.CaseNo, in)
		},
	}
}

// Fetch adapts a typed fetch function
func Fetch[Out any](stepID, name string, fn func(ctx context.Context, caseNo string, params map[string]string) (Out, error)) Handler {
	return Handler{
		Key:  Key{StepID: stepID, Operation: OperationFetch},
		Name: name,
		Fn: func(ctx context.Context, req Request) (interface{}, error) {
			params := req.Params
			if params == nil {
				params = map[string]string{}
			}
			return fn(ctx, req.CaseNo, params)
		},
	}
}

func decodeStrict(raw json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after payload")
	}
	return nil
}

// validateInput skips non-struct inputs, which carry no tags
func validateInput(in interface{}) error {
	err := validate.Struct(in)
	if _, ok := err.(*validator.InvalidValidationError); ok {
		return nil
	}
	return err
}
