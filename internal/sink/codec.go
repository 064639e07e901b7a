// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sink delivers session samples and status events to logs, files
// and message brokers.
package sink

import (
	"encoding/json"
	"fmt"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/fxamacker/cbor/v2"
)

// Message kinds
const (
	KindSample = "sample"
	KindStatus = "status"
)

// Message is the broker wire form of a sample or status event. CBOR uses
// integer keys to keep frames small.
type Message struct {
	Kind      string  `json:"kind" cbor:"1,keyasint"`
	Transport string  `json:"transport" cbor:"2,keyasint"`
	Elapsed   float64 `json:"elapsed,omitempty" cbor:"3,keyasint,omitempty"` // seconds
	Quantity  string  `json:"quantity,omitempty" cbor:"4,keyasint,omitempty"`
	Value     float64 `json:"value,omitempty" cbor:"5,keyasint,omitempty"`
	Unit      string  `json:"unit,omitempty" cbor:"6,keyasint,omitempty"`
	Status    string  `json:"status,omitempty" cbor:"7,keyasint,omitempty"`
	Error     string  `json:"error,omitempty" cbor:"8,keyasint,omitempty"`
}

// SampleMessage converts a sample.
func SampleMessage(transport string, s telemetry.Sample) Message {
	return Message{
		Kind:      KindSample,
		Transport: transport,
		Elapsed:   s.Elapsed.Seconds(),
		Quantity:  s.Quantity.String(),
		Value:     s.Value,
		Unit:      s.Quantity.Unit(),
	}
}

// StatusMessage converts a status event.
func StatusMessage(transport string, ev telemetry.StatusEvent) Message {
	m := Message{Kind: KindStatus, Transport: transport, Status: ev.Kind.String()}
	if ev.Err != nil {
		m.Error = ev.Err.Error()
	}
	return m
}

// Codec encodes messages for a broker.
type Codec interface {
	Name() string
	Marshal(Message) ([]byte, error)
	Unmarshal([]byte, *Message) error
}

// NewCodec returns the codec called name: "json" or "cbor".
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return jsonCodec{}, nil
	case "cbor":
		return cborCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string                         { return "json" }
func (jsonCodec) Marshal(m Message) ([]byte, error)    { return json.Marshal(m) }
func (jsonCodec) Unmarshal(b []byte, m *Message) error { return json.Unmarshal(b, m) }

type cborCodec struct{}

func (cborCodec) Name() string                         { return "cbor" }
func (cborCodec) Marshal(m Message) ([]byte, error)    { return cbor.Marshal(m) }
func (cborCodec) Unmarshal(b []byte, m *Message) error { return cbor.Unmarshal(b, m) }
