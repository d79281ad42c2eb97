// Package frame decodes raw radio frames into plaintext payloads.
//
// Sensors optionally encrypt their JSON payloads before transmission. The
// decoder supports three modes matching the sensor firmware: none, a
// repeating-key XOR stream, and AES-128 single-block ECB. The XOR transform
// is self-inverse; AES decrypts whole 16-byte blocks and leaves a trailing
// partial block untouched, mirroring what the sensors cipher.
//
// Decryption never fails: a wrong key yields garbage bytes that the
// telemetry parser then rejects as malformed JSON. Key mismatch therefore
// surfaces as a parse error, not a decode error.
package frame
