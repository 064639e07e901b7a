// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func TestFuzz_PackDecodeRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	d := NewDecoder()

	for round := 0; round < getFuzzRounds(); round++ {
		payload := make([]byte, 1+rng.Intn(MaxReceivePayload))
		rng.Read(payload)

		frame, err := Pack(payload)
		if err != nil {
			t.Fatalf("round %d: pack failed: %v", round, err)
		}

		var got *Packet
		for i, b := range frame {
			p, err := d.DecodeByte(b)
			if err != nil {
				t.Fatalf("round %d: decode error at byte %d: %v", round, i, err)
			}
			if p != nil {
				got = p
			}
		}
		if got == nil {
			t.Fatalf("round %d: no packet for %d byte payload", round, len(payload))
		}
		if !bytes.Equal(got.Payload(), payload) {
			t.Fatalf("round %d: payload mismatch", round)
		}
	}
}

func TestFuzz_SingleBitCorruption(t *testing.T) {
	rng := newFuzzRng(t)

	for round := 0; round < getFuzzRounds(); round++ {
		payload := make([]byte, 1+rng.Intn(64))
		rng.Read(payload)
		frame, _ := Pack(payload)

		// Flip one bit inside the payload or CRC; framing bytes stay intact.
		idx := 2 + rng.Intn(len(payload)+2)
		frame[idx] ^= 1 << uint(rng.Intn(8))

		d := NewDecoder()
		var sawCRC bool
		for _, b := range frame {
			p, err := d.DecodeByte(b)
			if p != nil {
				t.Fatalf("round %d: corrupted frame decoded as valid", round)
			}
			if errors.Is(err, telemetry.ErrCRCMismatch) {
				sawCRC = true
			}
		}
		if !sawCRC {
			t.Fatalf("round %d: corruption at byte %d not detected", round, idx)
		}
	}
}

func TestFuzz_RandomBytesNeverPanic(t *testing.T) {
	rng := newFuzzRng(t)
	d := NewDecoder()
	buf := make([]byte, 512)

	for round := 0; round < getFuzzRounds(); round++ {
		rng.Read(buf)
		for _, b := range buf {
			d.DecodeByte(b)
		}
	}
}
