package boltstore

import (
	"bytes"
	"encoding/gob"

	"github.com/crystal-mush/gotinyclient/pkg/automation"
)

// Entities are stored as gob of their exported fields. Compiled pattern
// state is unexported and recompiles lazily after decoding; transient
// fields (captures, executing guard) round-trip harmlessly.

func encodeTrigger(t *automation.Trigger) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeTrigger(data []byte) (*automation.Trigger, error) {
	var t automation.Trigger
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeAlias(a *automation.Alias) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeAlias(data []byte) (*automation.Alias, error) {
	var a automation.Alias
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

func encodeTimer(t *automation.Timer) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeTimer(data []byte) (*automation.Timer, error) {
	var t automation.Timer
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}
