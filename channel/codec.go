package channel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by decode errors.
var ErrMalformed = errors.New("channel: malformed message")

// JSONMethodCodec encodes calls as {"method": m, "args": a} and replies as
// envelopes: [result] for success, [code, message, details] for errors and
// an empty payload for not implemented.
type JSONMethodCodec struct{}

// EncodeMethodCall encodes call.
func (JSONMethodCodec) EncodeMethodCall(call MethodCall) ([]byte, error) {
	if call.Method == "" {
		return nil, errors.New("channel: method is required")
	}
	data, err := json.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("channel: encoding method call failed: %w", err)
	}
	return data, nil
}

// DecodeMethodCall decodes a method call. Numbers in args decode as
// json.Number.
func (JSONMethodCodec) DecodeMethodCall(data []byte) (MethodCall, error) {
	var raw struct {
		Method *string          `json:"method"`
		Args   *json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return MethodCall{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Method == nil || *raw.Method == "" {
		return MethodCall{}, fmt.Errorf("%w: missing method name", ErrMalformed)
	}

	call := MethodCall{Method: *raw.Method}
	if raw.Args != nil {
		args, err := decodeValue(*raw.Args)
		if err != nil {
			return MethodCall{}, fmt.Errorf("%w: args: %v", ErrMalformed, err)
		}
		call.Arguments = args
	}
	return call, nil
}

// EncodeEnvelope encodes a reply. NotImplemented encodes to nil.
func (JSONMethodCodec) EncodeEnvelope(r Result) ([]byte, error) {
	var payload any
	switch r.Kind() {
	case KindSuccess:
		payload = []any{r.Value()}
	case KindError:
		payload = []any{r.Code(), r.Message(), r.Details()}
	case KindNotImplemented:
		return nil, nil
	default:
		return nil, fmt.Errorf("channel: unknown result kind %s", r.Kind())
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("channel: encoding envelope failed: %w", err)
	}
	return data, nil
}

// DecodeEnvelope decodes a reply produced by EncodeEnvelope.
func (JSONMethodCodec) DecodeEnvelope(data []byte) (Result, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return NotImplemented(), nil
	}

	decoded, err := decodeValue(data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	items, ok := decoded.([]any)
	if !ok {
		return Result{}, fmt.Errorf("%w: envelope is not a list", ErrMalformed)
	}
	switch len(items) {
	case 1:
		return Success(items[0]), nil
	case 3:
		code, ok := items[0].(string)
		if !ok {
			return Result{}, fmt.Errorf("%w: error code is not a string", ErrMalformed)
		}
		message, _ := items[1].(string)
		return Error(code, message, items[2]), nil
	default:
		return Result{}, fmt.Errorf("%w: envelope has %d items", ErrMalformed, len(items))
	}
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data")
	}
	return v, nil
}
