package realtime

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MetricsSink is the observability collaborator.
type MetricsSink interface {
	RecordEvent(kind string, elapsed time.Duration)
	IncrementError(kind string)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) RecordEvent(string, time.Duration) {}
func (NopMetrics) IncrementError(string)             {}

// Handler processes one validated, rate-admitted event for a connection.
type Handler func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error)

// Dispatcher routes inbound client events through an explicit admission
// pipeline: schema validation, then the rate guard, then the typed handler.
// Every outcome, success or failure, becomes a response envelope; a handler
// failure or panic never tears down the connection's task.
type Dispatcher struct {
	handlers map[string]Handler
	schemas  map[string]*jsonschema.Schema
	guard    *RateGuard
	metrics  MetricsSink
}

func NewDispatcher(guard *RateGuard, metrics MetricsSink) *Dispatcher {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Dispatcher{
		handlers: make(map[string]Handler),
		schemas:  make(map[string]*jsonschema.Schema),
		guard:    guard,
		metrics:  metrics,
	}
}

// Handle registers an event with its payload schema. Schemas are compiled
// once at startup; a malformed schema is a programming error and panics.
// The colon in event names must not reach the schema URL, where it would
// be parsed as a URI scheme.
func (d *Dispatcher) Handle(event, schema string, h Handler) {
	d.schemas[event] = jsonschema.MustCompileString(strings.ReplaceAll(event, ":", "_")+".json", schema)
	d.handlers[event] = h
}

// Dispatch runs one request through the pipeline and returns its envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, conn *Connection, req Request) (env Envelope) {
	start := time.Now()
	defer func() {
		d.metrics.RecordEvent(req.Event, time.Since(start))
		if r := recover(); r != nil {
			log.Printf("dispatch: panic handling %s for %s: %v", req.Event, conn.UserID, r)
			env = d.failure(req.ID, &Error{Kind: ErrorDependency, Message: "internal error"})
		}
	}()

	handler, ok := d.handlers[req.Event]
	if !ok {
		return d.failure(req.ID, NewValidationError("unknown event: "+req.Event))
	}

	// Validation runs before the guard so a rejected payload never touches
	// the rate counters.
	if err := d.validate(req.Event, req.Payload); err != nil {
		return d.failure(req.ID, err)
	}

	if err := d.guard.Allow(ctx, conn.UserID, req.Event); err != nil {
		return d.failure(req.ID, AsError(err))
	}

	data, err := handler(ctx, conn, req.Payload)
	if err != nil {
		e := AsError(err)
		if e.Kind == ErrorDependency {
			// Full context stays in the log; the client sees a generic failure.
			log.Printf("dispatch: %s failed for %s: %v", req.Event, conn.UserID, e)
			e = &Error{Kind: ErrorDependency, Message: "internal error"}
		}
		return d.failure(req.ID, e)
	}

	return Envelope{ID: req.ID, Success: true, Data: data}
}

func (d *Dispatcher) validate(event string, payload json.RawMessage) *Error {
	schema := d.schemas[event]
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return NewValidationError("payload is not valid JSON")
	}
	if err := schema.Validate(value); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return NewValidationError("invalid payload")
		}
		fields := make([]string, 0, len(ve.Causes))
		for _, cause := range ve.Causes {
			fields = append(fields, cause.Error())
		}
		return NewValidationError("invalid payload", fields...)
	}
	return nil
}

func (d *Dispatcher) failure(id string, e *Error) Envelope {
	d.metrics.IncrementError(string(e.Kind))
	return Envelope{ID: id, Success: false, Message: e.Message, Errors: e.Fields}
}
