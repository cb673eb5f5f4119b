// Package messaging provides the typed message envelope and tag-based routing
// of inbound messages to listeners.
package messaging

import (
	"errors"
	"fmt"

	"github.com/morezero/message-bridge/pkg/value"
)

const (
	typeField = "type"
	dataField = "data"
)

// ErrEmptyType is returned for envelopes and listeners with an empty type tag.
var ErrEmptyType = errors.New("message type must not be empty")

// TypedMessage is the unit of transport: a type tag plus a payload.
type TypedMessage struct {
	Type string
	Data value.Value
}

// ToValue converts m into its {type, data} dictionary form.
func (m TypedMessage) ToValue() value.Value {
	return value.NewDict(map[string]value.Value{
		typeField: value.NewString(m.Type),
		dataField: m.Data,
	})
}

// ParseTypedMessage extracts a TypedMessage from its dictionary form.
func ParseTypedMessage(v value.Value) (TypedMessage, error) {
	fields, err := v.AsDict()
	if err != nil {
		return TypedMessage{}, fmt.Errorf("typed message: %w", err)
	}
	typeValue, ok := fields[typeField]
	if !ok {
		return TypedMessage{}, fmt.Errorf("typed message: missing %q field", typeField)
	}
	messageType, err := typeValue.AsString()
	if err != nil {
		return TypedMessage{}, fmt.Errorf("typed message: field %q: %w", typeField, err)
	}
	if messageType == "" {
		return TypedMessage{}, fmt.Errorf("typed message: %w", ErrEmptyType)
	}
	data, ok := fields[dataField]
	if !ok {
		return TypedMessage{}, fmt.Errorf("typed message: missing %q field", dataField)
	}
	for key := range fields {
		if key != typeField && key != dataField {
			return TypedMessage{}, fmt.Errorf("typed message: unexpected field %q", key)
		}
	}
	return TypedMessage{Type: messageType, Data: data}, nil
}
