package flatten

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestCleanReader(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"plain", []byte(`{"name":"Ada"}`), `{"name":"Ada"}`},
		{"bom", append([]byte{0xEF, 0xBB, 0xBF}, `{"a":1}`...), `{"a":1}`},
		{"bom only", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"bom not at start", []byte("a\xEF\xBB\xBFb"), "a\uFEFFb"},
		{"invalid bytes", []byte("caf\xE9 na\xEFve"), "caf? na?ve"},
		{"multibyte", []byte("Zoë 東京 🙂"), "Zoë 東京 🙂"},
		{"replacement char kept", []byte("a\uFFFDb"), "a\uFFFDb"},
		{"truncated rune", []byte("ok\xE6\x9D"), "ok??"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(CleanReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("ReadAll() = %q, want %q", got, tt.want)
			}

			// Byte-at-a-time sources must give the same result.
			got, err = io.ReadAll(CleanReader(iotest.OneByteReader(bytes.NewReader(tt.input))))
			if err != nil {
				t.Fatalf("ReadAll(one byte) error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("ReadAll(one byte) = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanReader_SmallBuffer(t *testing.T) {
	r := CleanReader(strings.NewReader("a東"))

	buf := make([]byte, 2)
	n, err := r.Read(buf)
	if err != nil || string(buf[:n]) != "a" {
		t.Fatalf("Read() = %q, %v, want %q", buf[:n], err, "a")
	}
	if _, err := r.Read(buf); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("Read() error = %v, want io.ErrShortBuffer", err)
	}

	buf = make([]byte, 3)
	n, err = r.Read(buf)
	if err != nil || string(buf[:n]) != "東" {
		t.Errorf("Read() = %q, %v, want %q", buf[:n], err, "東")
	}
}
