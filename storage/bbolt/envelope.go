package bbolt

import (
	"encoding/json"
	"errors"
	"fmt"
)

const envelopeVersion = 1

// ErrUnsupportedEnvelope is returned when a stored value was written by an
// incompatible version or holds a different kind of record.
var ErrUnsupportedEnvelope = errors.New("unsupported envelope")

// envelope wraps every stored value so the encoding can evolve without a
// migration of existing files.
type envelope struct {
	Ver  int             `json:"ver"`
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func seal(kind string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", kind, err)
	}
	return json.Marshal(envelope{Ver: envelopeVersion, Kind: kind, Data: data})
}

func open(raw []byte, kind string, out any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Ver != envelopeVersion {
		return fmt.Errorf("version %d: %w", env.Ver, ErrUnsupportedEnvelope)
	}
	if env.Kind != kind {
		return fmt.Errorf("kind %q, want %q: %w", env.Kind, kind, ErrUnsupportedEnvelope)
	}
	return json.Unmarshal(env.Data, out)
}
