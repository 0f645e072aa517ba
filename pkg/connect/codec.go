// Package connect implements the wire obfuscation used between the panel and
// the downstream license consumer: the payload is XORed with a repeating
// secret, then base64-encoded. The scheme is fixed by the external product and
// must stay byte-compatible in both directions.
package connect

import (
	"encoding/base64"
	"errors"
)

var ErrEmptySecret = errors.New("connect: empty secret")

// xorRepeat XORs data with the secret repeated to length. Symmetric: applying
// it twice yields the input.
func xorRepeat(data []byte, secret string) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ secret[i%len(secret)]
	}
	return out
}

// Encode obfuscates payload with the repeating secret and base64-encodes it.
func Encode(payload, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	return base64.StdEncoding.EncodeToString(xorRepeat([]byte(payload), secret)), nil
}

// Decode reverses Encode.
func Decode(encoded, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(xorRepeat(raw, secret)), nil
}
