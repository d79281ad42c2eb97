package frame

import (
	"bytes"
	"crypto/aes"
	"errors"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"none", ModeNone, false},
		{"", ModeNone, false},
		{"xor", ModeXOR, false},
		{"XOR", ModeXOR, false},
		{"aes", ModeAES, false},
		{"rot13", ModeNone, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownMode) {
				t.Errorf("ParseMode(%q) error = %v, want ErrUnknownMode", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q) error = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewDecoderKeyValidation(t *testing.T) {
	if _, err := NewDecoder(ModeXOR, nil); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("NewDecoder(xor, nil) error = %v, want ErrEmptyKey", err)
	}
	if _, err := NewDecoder(ModeAES, nil); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("NewDecoder(aes, nil) error = %v, want ErrEmptyKey", err)
	}
	if _, err := NewDecoder(ModeNone, nil); err != nil {
		t.Errorf("NewDecoder(none, nil) error = %v, want nil", err)
	}
}

func TestNewDecoderFromConfig(t *testing.T) {
	d, err := NewDecoderFromConfig("xor", "4ba33f9c")
	if err != nil {
		t.Fatalf("NewDecoderFromConfig() error = %v", err)
	}
	if d.Mode() != ModeXOR {
		t.Errorf("Mode() = %v, want ModeXOR", d.Mode())
	}

	if _, err := NewDecoderFromConfig("xor", "not-hex"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("bad hex key error = %v, want ErrInvalidKey", err)
	}
	if _, err := NewDecoderFromConfig("bogus", ""); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("bad mode error = %v, want ErrUnknownMode", err)
	}
}

func TestDecodeNone(t *testing.T) {
	d, err := NewDecoder(ModeNone, nil)
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	in := []byte(`{"id":"a1b2c3"}`)
	out := d.Decode(in)
	if !bytes.Equal(out, in) {
		t.Errorf("Decode() = %q, want input unchanged", out)
	}
	if &out[0] == &in[0] {
		t.Error("Decode() returned the input slice, want a copy")
	}
}

func TestDecodeXORSelfInverse(t *testing.T) {
	key := []byte{0x4b, 0xa3, 0x3f, 0x9c}
	d, err := NewDecoder(ModeXOR, key)
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	plaintexts := [][]byte{
		[]byte(`{"k":"xy","id":"a1b2c3","t":21.5}`),
		[]byte("x"),
		{},
		[]byte("a frame longer than the key so the key wraps around several times"),
	}

	for _, plain := range plaintexts {
		cipher := d.Decode(plain)
		back := d.Decode(cipher)
		if !bytes.Equal(back, plain) {
			t.Errorf("Decode(Decode(%q)) = %q, want original", plain, back)
		}
	}
}

func TestDecodeXORKeyWraps(t *testing.T) {
	d, err := NewDecoder(ModeXOR, []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	out := d.Decode([]byte{0x00, 0x00, 0x00, 0x00})
	want := []byte{0x01, 0x02, 0x01, 0x02}
	if !bytes.Equal(out, want) {
		t.Errorf("Decode() = %v, want %v", out, want)
	}
}

func TestDecodeXORDoesNotModifyInput(t *testing.T) {
	d, err := NewDecoder(ModeXOR, []byte{0xff})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	in := []byte{0x01, 0x02, 0x03}
	orig := append([]byte(nil), in...)
	d.Decode(in)
	if !bytes.Equal(in, orig) {
		t.Error("Decode() modified the input slice")
	}
}

// encryptAES encrypts whole 16-byte blocks the way the sensor firmware does,
// leaving any trailing partial block as plaintext.
func encryptAES(t *testing.T, key, plain []byte) []byte {
	t.Helper()

	padded := make([]byte, 16)
	copy(padded, key)
	block, err := aes.NewCipher(padded)
	if err != nil {
		t.Fatalf("aes.NewCipher() error = %v", err)
	}

	out := append([]byte(nil), plain...)
	for off := 0; off+16 <= len(out); off += 16 {
		block.Encrypt(out[off:off+16], out[off:off+16])
	}
	return out
}

func TestDecodeAESRoundTrip(t *testing.T) {
	key := []byte("sixteen-byte-key")
	d, err := NewDecoder(ModeAES, key)
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	tests := []struct {
		name  string
		plain []byte
	}{
		{"one full block", []byte("0123456789abcdef")},
		{"two full blocks", []byte("0123456789abcdef0123456789abcdef")},
		{"full block plus partial tail", []byte("0123456789abcdefTAIL")},
		{"shorter than a block", []byte("short")},
		{"empty", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cipher := encryptAES(t, key, tt.plain)
			got := d.Decode(cipher)
			if !bytes.Equal(got, tt.plain) {
				t.Errorf("Decode() = %q, want %q", got, tt.plain)
			}
		})
	}
}

func TestDecodeAESPartialTailUntouched(t *testing.T) {
	key := []byte("k")
	d, err := NewDecoder(ModeAES, key)
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	// 20 bytes: one ciphered block plus a 4-byte plaintext tail.
	plain := []byte("0123456789abcdefTAIL")
	cipher := encryptAES(t, key, plain)

	got := d.Decode(cipher)
	if !bytes.Equal(got[16:], []byte("TAIL")) {
		t.Errorf("trailing partial block = %q, want untouched %q", got[16:], "TAIL")
	}
}

func TestDecodeAESShortKeyZeroPadded(t *testing.T) {
	// A short key and its explicit zero-padded form must decrypt identically.
	short, err := NewDecoder(ModeAES, []byte("abc"))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	padded, err := NewDecoder(ModeAES, append([]byte("abc"), make([]byte, 13)...))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	cipher := encryptAES(t, []byte("abc"), []byte("0123456789abcdef"))
	if !bytes.Equal(short.Decode(cipher), padded.Decode(cipher)) {
		t.Error("short key and zero-padded key produced different plaintext")
	}
}

func TestDecodeAESLongKeyTruncated(t *testing.T) {
	long := []byte("0123456789abcdefEXTRA")
	d, err := NewDecoder(ModeAES, long)
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	cipher := encryptAES(t, long[:16], []byte("0123456789abcdef"))
	got := d.Decode(cipher)
	if !bytes.Equal(got, []byte("0123456789abcdef")) {
		t.Errorf("Decode() with over-length key = %q, want truncation to 16 bytes", got)
	}
}
