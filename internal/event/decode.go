package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNilPayload is returned when an event carries no payload at all
var ErrNilPayload = errors.New("event payload is nil")

// DecodePayload returns the payload as T. Events published in process carry T
// (or *T) directly; payloads read back from the dead-letter file are generic JSON
// values and go through a JSON round trip.
func DecodePayload[T any](input any) (T, error) {
	var result T
	switch v := input.(type) {
	case nil:
		return result, ErrNilPayload
	case T:
		return v, nil
	case *T:
		if v == nil {
			return result, ErrNilPayload
		}
		return *v, nil
	}

	data, err := json.Marshal(input)
	if err != nil {
		return result, fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("decode payload as %T: %w", result, err)
	}
	return result, nil
}
