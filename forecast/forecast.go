// Package forecast defines the closed catalog of forecast messages that can be
// dispatched through the router. Parsing a raw inbound event into a Kind is a
// pure function with no side effects; anything outside the catalog is rejected
// with ErrUnknownKind before it ever reaches the router.
package forecast

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrUnknownKind is returned when a raw inbound event does not match any
// catalog variant. It is a boundary-layer error: messages carrying an unknown
// kind are rejected before dispatch.
var ErrUnknownKind = errors.New("unknown message kind")

// Kind identifies one variant of the forecast message catalog.
type Kind string

const (
	// Low is the low-temperature forecast variant.
	Low Kind = "low"
	// Medium is the medium-temperature forecast variant.
	Medium Kind = "medium"
	// High is the high-temperature forecast variant.
	High Kind = "high"
)

// Kinds returns the closed set of catalog variants, in a stable order.
func Kinds() []Kind {
	return []Kind{Low, Medium, High}
}

// Valid returns true if the kind is part of the catalog.
func (k Kind) Valid() bool {
	switch k {
	case Low, Medium, High:
		return true
	default:
		return false
	}
}

// String returns the kind's wire representation.
func (k Kind) String() string {
	return string(k)
}

// Display returns the human-readable name of the kind ("Low", "Medium", "High").
func (k Kind) Display() string {
	if len(k) == 0 {
		return ""
	}

	return strings.ToUpper(string(k[0])) + string(k[1:])
}

// Parse translates a raw inbound event into a catalog Kind.
// Matching is case-insensitive and ignores surrounding whitespace.
// Returns ErrUnknownKind for anything outside the catalog.
func Parse(raw string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))

	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}

	return kind, nil
}

// Message is one immutable forecast event. It is created by an external
// producer, consumed exactly once by exactly one worker, and never persisted.
// CorrelationId is carried explicitly for reply correlation instead of
// relying on ambient sender identity.
type Message struct {
	// Kind is the catalog variant tag used for routing.
	Kind Kind
	// ForecastType is the human-readable forecast description.
	ForecastType string
	// CorrelationId uniquely identifies this message for reply routing
	// and log correlation.
	CorrelationId string
}

// New creates a message of the given kind with a fresh correlation id.
func New(kind Kind) Message {
	return Message{
		Kind:          kind,
		ForecastType:  kind.Display() + " temperature forecast",
		CorrelationId: uuid.New().String(),
	}
}

// FromRaw parses a raw inbound event and, if it names a catalog variant,
// builds a dispatchable message from it.
func FromRaw(raw string) (Message, error) {
	kind, err := Parse(raw)
	if err != nil {
		return Message{}, err
	}

	return New(kind), nil
}
