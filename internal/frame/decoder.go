package frame

import (
	"crypto/aes"
	"encoding/hex"
	"fmt"
	"strings"
)

// Mode selects the symmetric transform applied to received frames.
type Mode int

const (
	// ModeNone passes frames through untouched.
	ModeNone Mode = iota

	// ModeXOR applies a repeating-key XOR stream. The transform is its own
	// inverse, so the same operation encrypts and decrypts.
	ModeXOR

	// ModeAES applies AES-128 in single-block ECB. Each full 16-byte block
	// is decrypted independently; a trailing partial block is left as-is.
	ModeAES
)

// aesBlockSize is the AES block and key length in bytes.
const aesBlockSize = 16

// String returns the config-file name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeXOR:
		return "xor"
	case ModeAES:
		return "aes"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a config-file mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return ModeNone, nil
	case "xor":
		return ModeXOR, nil
	case "aes":
		return ModeAES, nil
	default:
		return ModeNone, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Decoder turns raw radio frames back into plaintext payloads.
//
// A Decoder is immutable once built; swapping the encryption settings at
// runtime means building a new Decoder and handing it to the gateway loop.
type Decoder struct {
	mode Mode
	key  []byte
}

// NewDecoder creates a Decoder for the given mode and key.
//
// The key requirements depend on the mode:
//   - ModeNone: key is ignored
//   - ModeXOR: key must be non-empty; bytes repeat over the frame
//   - ModeAES: key is zero-padded or truncated to exactly 16 bytes
//
// Parameters:
//   - mode: Transform to apply
//   - key: Raw key bytes
//
// Returns:
//   - *Decoder: Ready decoder
//   - error: ErrEmptyKey if the mode requires a key and none was given
func NewDecoder(mode Mode, key []byte) (*Decoder, error) {
	switch mode {
	case ModeNone:
		return &Decoder{mode: mode}, nil
	case ModeXOR:
		if len(key) == 0 {
			return nil, fmt.Errorf("%w: xor mode", ErrEmptyKey)
		}
		return &Decoder{mode: mode, key: append([]byte(nil), key...)}, nil
	case ModeAES:
		if len(key) == 0 {
			return nil, fmt.Errorf("%w: aes mode", ErrEmptyKey)
		}
		return &Decoder{mode: mode, key: normaliseAESKey(key)}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, mode)
	}
}

// NewDecoderFromConfig builds a Decoder from config-file strings:
// a mode name and a hex-encoded key.
func NewDecoderFromConfig(mode, hexKey string) (*Decoder, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}

	var key []byte
	if hexKey != "" {
		key, err = hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
	}

	return NewDecoder(m, key)
}

// Mode returns the decoder's transform mode.
func (d *Decoder) Mode() Mode {
	return d.mode
}

// Decode transforms a received frame into its plaintext payload.
//
// The input slice is never modified; the result is always a fresh copy.
// An empty frame decodes to an empty payload in every mode.
func (d *Decoder) Decode(data []byte) []byte {
	out := append([]byte(nil), data...)

	switch d.mode {
	case ModeXOR:
		for i := range out {
			out[i] ^= d.key[i%len(d.key)]
		}
	case ModeAES:
		d.decryptBlocks(out)
	}

	return out
}

// decryptBlocks decrypts each full 16-byte block in place.
// Trailing bytes that don't fill a block are left untouched: the sensors
// send unpadded payloads and only whole blocks are ciphered on their side.
func (d *Decoder) decryptBlocks(data []byte) {
	block, err := aes.NewCipher(d.key)
	if err != nil {
		// Key length is normalised at construction, NewCipher cannot fail.
		return
	}

	for off := 0; off+aesBlockSize <= len(data); off += aesBlockSize {
		block.Decrypt(data[off:off+aesBlockSize], data[off:off+aesBlockSize])
	}
}

// normaliseAESKey zero-pads or truncates a key to exactly 16 bytes.
func normaliseAESKey(key []byte) []byte {
	out := make([]byte, aesBlockSize)
	copy(out, key)
	return out
}
