package requesting

import (
	"fmt"

	"github.com/morezero/message-bridge/pkg/messaging"
	"github.com/morezero/message-bridge/pkg/value"
)

const (
	requestSuffix  = "::request"
	responseSuffix = "::response"

	requestIDField    = "request_id"
	payloadField      = "payload"
	errorMessageField = "error_message"
)

// RequestMessageType returns the type tag of requests sent by the requester
// named name.
func RequestMessageType(name string) string { return name + requestSuffix }

// ResponseMessageType returns the type tag of responses to the requester
// named name.
func ResponseMessageType(name string) string { return name + responseSuffix }

// RequestMessageData is the data of a request message.
type RequestMessageData struct {
	RequestID RequestID
	Payload   value.Value
}

func (d RequestMessageData) ToValue() value.Value {
	return value.NewDict(map[string]value.Value{
		requestIDField: value.NewInt(int64(d.RequestID)),
		payloadField:   d.Payload,
	})
}

// ParseRequestMessageData extracts request data from v.
func ParseRequestMessageData(v value.Value) (RequestMessageData, error) {
	id, err := parseRequestID(v)
	if err != nil {
		return RequestMessageData{}, err
	}
	payload, err := v.RequiredField(payloadField)
	if err != nil {
		return RequestMessageData{}, fmt.Errorf("request message: %w", err)
	}
	return RequestMessageData{RequestID: id, Payload: payload}, nil
}

// ResponseMessageData is the data of a response message. Exactly one of a
// payload or an error message is carried.
type ResponseMessageData struct {
	RequestID RequestID
	Result    GenericRequestResult
}

func (d ResponseMessageData) ToValue() value.Value {
	fields := map[string]value.Value{
		requestIDField: value.NewInt(int64(d.RequestID)),
	}
	if d.Result.IsSuccessful() {
		fields[payloadField] = d.Result.Payload()
	} else {
		fields[errorMessageField] = value.NewString(d.Result.ErrorMessage())
	}
	return value.NewDict(fields)
}

// ParseResponseMessageData extracts response data from v. A canceled outcome
// never travels over the wire; remote failures arrive as failed results.
func ParseResponseMessageData(v value.Value) (ResponseMessageData, error) {
	id, err := parseRequestID(v)
	if err != nil {
		return ResponseMessageData{}, err
	}
	payload, hasPayload := v.Field(payloadField)
	errorValue, hasError := v.Field(errorMessageField)
	switch {
	case hasPayload && hasError:
		return ResponseMessageData{}, fmt.Errorf("response message: both %q and %q present", payloadField, errorMessageField)
	case hasPayload:
		return ResponseMessageData{RequestID: id, Result: Succeeded(payload)}, nil
	case hasError:
		message, err := errorValue.AsString()
		if err != nil {
			return ResponseMessageData{}, fmt.Errorf("response message: field %q: %w", errorMessageField, err)
		}
		return ResponseMessageData{RequestID: id, Result: Failed(message)}, nil
	}
	return ResponseMessageData{}, fmt.Errorf("response message: neither %q nor %q present", payloadField, errorMessageField)
}

func parseRequestID(v value.Value) (RequestID, error) {
	idValue, err := v.RequiredField(requestIDField)
	if err != nil {
		return 0, fmt.Errorf("message data: %w", err)
	}
	id, err := idValue.AsInt()
	if err != nil {
		return 0, fmt.Errorf("message data: field %q: %w", requestIDField, err)
	}
	if id < 0 {
		return 0, fmt.Errorf("message data: negative request id %d", id)
	}
	return RequestID(id), nil
}

// NewRequestMessage builds the envelope of a request sent by requester name.
func NewRequestMessage(name string, id RequestID, payload value.Value) messaging.TypedMessage {
	return messaging.TypedMessage{
		Type: RequestMessageType(name),
		Data: RequestMessageData{RequestID: id, Payload: payload}.ToValue(),
	}
}

// NewResponseMessage builds the envelope answering request id of requester name.
func NewResponseMessage(name string, id RequestID, result GenericRequestResult) messaging.TypedMessage {
	return messaging.TypedMessage{
		Type: ResponseMessageType(name),
		Data: ResponseMessageData{RequestID: id, Result: result}.ToValue(),
	}
}
