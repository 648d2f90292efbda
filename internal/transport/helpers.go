package transport

import (
	"encoding/json"

	"github.com/google/uuid"
)

func unmarshalPayload(raw json.RawMessage, dst any) error {
	return json.Unmarshal(raw, dst)
}

func newID() string {
	return uuid.NewString()
}
