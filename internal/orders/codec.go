// Package orders carries a player's pending orders as a compact string so
// they can travel out-of-band (scanned code, copy-paste) and be ingested by
// the host. Wire layout after base64url decoding:
//
//	byte 0      format version
//	bytes 1..8  blake3 checksum prefix of the compressed body
//	bytes 9..   lz4-compressed msgpack body
package orders

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
	"lukechampine.com/blake3"

	"github.com/example/starhold/internal/game"
)

const codecVersion = 1

const checksumLen = 8

// ErrInvalidTransmission marks a payload that is not a well-formed order
// transmission: wrong encoding, truncation, checksum mismatch, or a body
// that does not decode. Callers surface it to the submitting user; nothing
// about the game state changes.
var ErrInvalidTransmission = errors.New("orders: invalid transmission")

// Transmission is one player's order batch for one round.
type Transmission struct {
	Owner  game.Owner   `msgpack:"o"`
	Round  int          `msgpack:"r"`
	Orders []game.Order `msgpack:"os"`
}

// Encode serializes a transmission into a transmissible string.
func Encode(t Transmission) (string, error) {
	body, err := msgpack.Marshal(&t)
	if err != nil {
		return "", fmt.Errorf("orders: encode: %w", err)
	}

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return "", fmt.Errorf("orders: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("orders: compress: %w", err)
	}
	compressed := buf.Bytes()

	sum := blake3.Sum256(compressed)
	payload := make([]byte, 0, 1+checksumLen+len(compressed))
	payload = append(payload, codecVersion)
	payload = append(payload, sum[:checksumLen]...)
	payload = append(payload, compressed...)
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// Decode parses a transmission string produced by Encode. Any malformed
// input fails with ErrInvalidTransmission.
func Decode(s string) (Transmission, error) {
	var t Transmission
	payload, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return t, fmt.Errorf("%w: bad encoding", ErrInvalidTransmission)
	}
	if len(payload) < 1+checksumLen {
		return t, fmt.Errorf("%w: truncated", ErrInvalidTransmission)
	}
	if payload[0] != codecVersion {
		return t, fmt.Errorf("%w: unsupported version %d", ErrInvalidTransmission, payload[0])
	}
	compressed := payload[1+checksumLen:]
	sum := blake3.Sum256(compressed)
	if !bytes.Equal(sum[:checksumLen], payload[1:1+checksumLen]) {
		return t, fmt.Errorf("%w: checksum mismatch", ErrInvalidTransmission)
	}

	zr := lz4.NewReader(bytes.NewReader(compressed))
	body, err := io.ReadAll(zr)
	if err != nil {
		return t, fmt.Errorf("%w: corrupt body", ErrInvalidTransmission)
	}
	if err := msgpack.Unmarshal(body, &t); err != nil {
		return t, fmt.Errorf("%w: undecodable body", ErrInvalidTransmission)
	}
	return t, nil
}
