package requesting

import (
	"errors"
	"fmt"
	"strings"

	"github.com/morezero/message-bridge/pkg/value"
)

const (
	functionNameField = "function_name"
	argumentsField    = "arguments"

	maxDumpedNameLength     = 64
	maxDumpedArgumentLength = 128
	maxDumpLength           = 1024
)

// ErrEmptyFunctionName is returned for remote calls without a function name.
var ErrEmptyFunctionName = errors.New("function name must not be empty")

// RemoteCallRequestPayload describes a call of a named function.
type RemoteCallRequestPayload struct {
	FunctionName string
	Arguments    []value.Value
}

// NewRemoteCallRequestPayload builds a payload for calling functionName.
func NewRemoteCallRequestPayload(functionName string, args ...value.Value) RemoteCallRequestPayload {
	return RemoteCallRequestPayload{FunctionName: functionName, Arguments: args}
}

// ToValue converts p into its {function_name, arguments} form.
func (p RemoteCallRequestPayload) ToValue() value.Value {
	return value.NewDict(map[string]value.Value{
		functionNameField: value.NewString(p.FunctionName),
		argumentsField:    value.NewArray(p.Arguments...),
	})
}

// ParseRemoteCallRequestPayload extracts a remote call description from v.
func ParseRemoteCallRequestPayload(v value.Value) (RemoteCallRequestPayload, error) {
	nameValue, err := v.RequiredField(functionNameField)
	if err != nil {
		return RemoteCallRequestPayload{}, fmt.Errorf("remote call: %w", err)
	}
	name, err := nameValue.AsString()
	if err != nil {
		return RemoteCallRequestPayload{}, fmt.Errorf("remote call: field %q: %w", functionNameField, err)
	}
	if name == "" {
		return RemoteCallRequestPayload{}, fmt.Errorf("remote call: %w", ErrEmptyFunctionName)
	}
	argsValue, err := v.RequiredField(argumentsField)
	if err != nil {
		return RemoteCallRequestPayload{}, fmt.Errorf("remote call: %w", err)
	}
	args, err := argsValue.AsArray()
	if err != nil {
		return RemoteCallRequestPayload{}, fmt.Errorf("remote call: field %q: %w", argumentsField, err)
	}
	return RemoteCallRequestPayload{FunctionName: name, Arguments: args}, nil
}

// DebugDumpSanitized renders p as name(arg1,arg2,...) for logging. Each part
// is sanitized and individually bounded, and so is the whole rendering.
func (p RemoteCallRequestPayload) DebugDumpSanitized() string {
	var sb strings.Builder
	sb.WriteString(value.SanitizeForLog(p.FunctionName, maxDumpedNameLength))
	sb.WriteByte('(')
	for i, arg := range p.Arguments {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(value.SanitizeForLog(arg.String(), maxDumpedArgumentLength))
	}
	sb.WriteByte(')')
	return value.SanitizeForLog(sb.String(), maxDumpLength)
}
