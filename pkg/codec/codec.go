// Package codec serializes workflow snapshots for byte-oriented checkpoint
// backends (file, Redis, SQLite, Postgres).
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/mahi1722/ticketflow/pkg/domain"
)

// Codec turns a State into bytes and back.
type Codec interface {
	Name() string
	Marshal(state *domain.State) ([]byte, error)
	Unmarshal(data []byte) (*domain.State, error)
}

// JSON is the default codec.
var JSON Codec = jsonCodec{}

// CBOR encodes snapshots with RFC 8949 core deterministic encoding.
var CBOR Codec = newCBORCodec()

// ByName resolves a codec from configuration.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (want json or cbor)", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(state *domain.State) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte) (*domain.State, error) {
	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	enc, err := encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	// Variables are map[string]any; the CBOR default of
	// map[interface{}]interface{} would not survive a later JSON encode.
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) Name() string { return "cbor" }

func (c cborCodec) Marshal(state *domain.State) ([]byte, error) {
	data, err := c.enc.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return data, nil
}

func (c cborCodec) Unmarshal(data []byte) (*domain.State, error) {
	var state domain.State
	if err := c.dec.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}
