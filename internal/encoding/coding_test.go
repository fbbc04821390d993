package encoding

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

// -----------------------------------------------------------------------------
// Fixed-width encoding tests
// -----------------------------------------------------------------------------

func TestFixed16(t *testing.T) {
	tests := []struct {
		name  string
		value uint16
		want  []byte
	}{
		{"zero", 0, []byte{0x00, 0x00}},
		{"one", 1, []byte{0x01, 0x00}},
		{"max", 0xFFFF, []byte{0xFF, 0xFF}},
		{"0x1234", 0x1234, []byte{0x34, 0x12}}, // little-endian
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 2)
			EncodeFixed16(buf, tt.value)
			if !bytes.Equal(buf, tt.want) {
				t.Errorf("EncodeFixed16(%d) = %v, want %v", tt.value, buf, tt.want)
			}

			got := DecodeFixed16(tt.want)
			if got != tt.value {
				t.Errorf("DecodeFixed16(%v) = %d, want %d", tt.want, got, tt.value)
			}
		})
	}
}

func TestFixed32(t *testing.T) {
	tests := []struct {
		name  string
		value uint32
		want  []byte
	}{
		{"zero", 0, []byte{0x00, 0x00, 0x00, 0x00}},
		{"one", 1, []byte{0x01, 0x00, 0x00, 0x00}},
		{"max", 0xFFFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{"0x12345678", 0x12345678, []byte{0x78, 0x56, 0x34, 0x12}},
		{"blob magic", 0x2be0a614, []byte{0x14, 0xa6, 0xe0, 0x2b}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 4)
			EncodeFixed32(buf, tt.value)
			if !bytes.Equal(buf, tt.want) {
				t.Errorf("EncodeFixed32(%d) = %v, want %v", tt.value, buf, tt.want)
			}

			got := DecodeFixed32(tt.want)
			if got != tt.value {
				t.Errorf("DecodeFixed32(%v) = %d, want %d", tt.want, got, tt.value)
			}

			appended := AppendFixed32(nil, tt.value)
			if !bytes.Equal(appended, tt.want) {
				t.Errorf("AppendFixed32(%d) = %v, want %v", tt.value, appended, tt.want)
			}
		})
	}
}

func TestFixed64(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		want  []byte
	}{
		{"zero", 0, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{"one", 1, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{"max", math.MaxUint64, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"footer magic", 0x2be0a6148e39edc6, []byte{0xc6, 0xed, 0x39, 0x8e, 0x14, 0xa6, 0xe0, 0x2b}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 8)
			EncodeFixed64(buf, tt.value)
			if !bytes.Equal(buf, tt.want) {
				t.Errorf("EncodeFixed64(%d) = %v, want %v", tt.value, buf, tt.want)
			}

			got := DecodeFixed64(tt.want)
			if got != tt.value {
				t.Errorf("DecodeFixed64(%v) = %d, want %d", tt.want, got, tt.value)
			}

			appended := AppendFixed64(nil, tt.value)
			if !bytes.Equal(appended, tt.want) {
				t.Errorf("AppendFixed64(%d) = %v, want %v", tt.value, appended, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Varint tests
// -----------------------------------------------------------------------------

func TestVarint32(t *testing.T) {
	tests := []struct {
		name  string
		value uint32
		want  []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"one", 1, []byte{0x01}},
		{"127", 127, []byte{0x7F}},
		{"128", 128, []byte{0x80, 0x01}},
		{"300", 300, []byte{0xAC, 0x02}},
		{"16383", 16383, []byte{0xFF, 0x7F}},
		{"16384", 16384, []byte{0x80, 0x80, 0x01}},
		{"max", math.MaxUint32, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, MaxVarint32Length)
			n := EncodeVarint32(buf, tt.value)
			if !bytes.Equal(buf[:n], tt.want) {
				t.Errorf("EncodeVarint32(%d) = %v, want %v", tt.value, buf[:n], tt.want)
			}

			got, read, err := DecodeVarint32(tt.want)
			if err != nil {
				t.Fatalf("DecodeVarint32(%v) error: %v", tt.want, err)
			}
			if got != tt.value || read != len(tt.want) {
				t.Errorf("DecodeVarint32(%v) = (%d, %d), want (%d, %d)",
					tt.want, got, read, tt.value, len(tt.want))
			}

			appended := AppendVarint32(nil, tt.value)
			if !bytes.Equal(appended, tt.want) {
				t.Errorf("AppendVarint32(%d) = %v, want %v", tt.value, appended, tt.want)
			}
		})
	}
}

func TestVarint64(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		want  []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"127", 127, []byte{0x7F}},
		{"128", 128, []byte{0x80, 0x01}},
		{"max uint32", math.MaxUint32, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
		{"max uint64", math.MaxUint64, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, MaxVarint64Length)
			n := EncodeVarint64(buf, tt.value)
			if !bytes.Equal(buf[:n], tt.want) {
				t.Errorf("EncodeVarint64(%d) = %v, want %v", tt.value, buf[:n], tt.want)
			}

			got, read, err := DecodeVarint64(tt.want)
			if err != nil {
				t.Fatalf("DecodeVarint64(%v) error: %v", tt.want, err)
			}
			if got != tt.value || read != len(tt.want) {
				t.Errorf("DecodeVarint64(%v) = (%d, %d), want (%d, %d)",
					tt.want, got, read, tt.value, len(tt.want))
			}

			if l := VarintLength(tt.value); l != len(tt.want) {
				t.Errorf("VarintLength(%d) = %d, want %d", tt.value, l, len(tt.want))
			}
		})
	}
}

func TestVarintErrors(t *testing.T) {
	t.Run("truncated", func(t *testing.T) {
		// 0x80 has the continuation bit set but no following byte.
		_, _, err := DecodeVarint32([]byte{0x80})
		if !errors.Is(err, ErrVarintTermination) {
			t.Errorf("DecodeVarint32 truncated = %v, want ErrVarintTermination", err)
		}
		_, _, err = DecodeVarint64([]byte{0xFF, 0xFF})
		if !errors.Is(err, ErrVarintTermination) {
			t.Errorf("DecodeVarint64 truncated = %v, want ErrVarintTermination", err)
		}
	})

	t.Run("overflow", func(t *testing.T) {
		// Six continuation bytes exceed the 32-bit range.
		_, _, err := DecodeVarint32([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
		if !errors.Is(err, ErrVarintOverflow) {
			t.Errorf("DecodeVarint32 overflow = %v, want ErrVarintOverflow", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, _, err := DecodeVarint64(nil)
		if !errors.Is(err, ErrVarintTermination) {
			t.Errorf("DecodeVarint64(nil) = %v, want ErrVarintTermination", err)
		}
	})
}

// -----------------------------------------------------------------------------
// Length-prefixed slice tests
// -----------------------------------------------------------------------------

func TestLengthPrefixedSlice(t *testing.T) {
	tests := []struct {
		name  string
		value []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("key")},
		{"binary", []byte{0x00, 0xFF, 0x7F, 0x80}},
		{"long", bytes.Repeat([]byte{0xAB}, 300)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := AppendLengthPrefixedSlice(nil, tt.value)

			decoded, n, err := DecodeLengthPrefixedSlice(encoded)
			if err != nil {
				t.Fatalf("DecodeLengthPrefixedSlice error: %v", err)
			}
			if n != len(encoded) {
				t.Errorf("consumed %d bytes, want %d", n, len(encoded))
			}
			if !bytes.Equal(decoded, tt.value) {
				t.Errorf("decoded %v, want %v", decoded, tt.value)
			}
		})
	}

	t.Run("truncated payload", func(t *testing.T) {
		encoded := AppendLengthPrefixedSlice(nil, []byte("hello"))
		_, _, err := DecodeLengthPrefixedSlice(encoded[:3])
		if !errors.Is(err, ErrBufferTooSmall) {
			t.Errorf("truncated decode = %v, want ErrBufferTooSmall", err)
		}
	})
}

// -----------------------------------------------------------------------------
// Slice reader tests
// -----------------------------------------------------------------------------

func TestSliceSequentialReads(t *testing.T) {
	var data []byte
	data = AppendFixed32(data, 0xDEADBEEF)
	data = AppendVarint64(data, 1<<40)
	data = AppendLengthPrefixedSlice(data, []byte("blob"))
	data = AppendFixed64(data, 42)

	s := NewSlice(data)

	if v, ok := s.GetFixed32(); !ok || v != 0xDEADBEEF {
		t.Errorf("GetFixed32 = (%x, %v), want (0xDEADBEEF, true)", v, ok)
	}
	if v, ok := s.GetVarint64(); !ok || v != 1<<40 {
		t.Errorf("GetVarint64 = (%d, %v), want (%d, true)", v, ok, uint64(1)<<40)
	}
	if v, ok := s.GetLengthPrefixedSlice(); !ok || !bytes.Equal(v, []byte("blob")) {
		t.Errorf("GetLengthPrefixedSlice = (%q, %v), want (blob, true)", v, ok)
	}
	if v, ok := s.GetFixed64(); !ok || v != 42 {
		t.Errorf("GetFixed64 = (%d, %v), want (42, true)", v, ok)
	}
	if s.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", s.Remaining())
	}

	// All reads past the end report failure without panicking.
	if _, ok := s.GetFixed32(); ok {
		t.Error("GetFixed32 past end should return false")
	}
	if _, ok := s.GetBytes(1); ok {
		t.Error("GetBytes past end should return false")
	}
}

func TestSliceGetBytes(t *testing.T) {
	s := NewSlice([]byte{1, 2, 3, 4, 5})
	got, ok := s.GetBytes(3)
	if !ok || !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("GetBytes(3) = (%v, %v), want ([1 2 3], true)", got, ok)
	}
	if s.Remaining() != 2 {
		t.Errorf("Remaining = %d, want 2", s.Remaining())
	}
	if _, ok := s.GetBytes(3); ok {
		t.Error("GetBytes(3) with 2 remaining should return false")
	}
}
