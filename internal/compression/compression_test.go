package compression

import (
	"bytes"
	"strings"
	"testing"
)

func testPayload() []byte {
	// Repetitive data so every algorithm actually shrinks it.
	return []byte(strings.Repeat("titanyard blob record payload ", 100))
}

func TestRoundTrip(t *testing.T) {
	types := []Type{
		NoCompression,
		SnappyCompression,
		ZlibCompression,
		LZ4Compression,
		LZ4HCCompression,
		ZstdCompression,
	}

	data := testPayload()
	for _, ct := range types {
		t.Run(ct.String(), func(t *testing.T) {
			compressed, err := Compress(ct, data)
			if err != nil {
				t.Fatalf("Compress(%s) error: %v", ct, err)
			}
			if ct != NoCompression && len(compressed) >= len(data) {
				t.Errorf("Compress(%s) did not shrink data: %d >= %d", ct, len(compressed), len(data))
			}
			decompressed, err := Decompress(ct, compressed)
			if err != nil {
				t.Fatalf("Decompress(%s) error: %v", ct, err)
			}
			if !bytes.Equal(decompressed, data) {
				t.Errorf("Decompress(%s) mismatch: got %d bytes, want %d", ct, len(decompressed), len(data))
			}
		})
	}
}

func TestRoundTripEmpty(t *testing.T) {
	types := []Type{SnappyCompression, ZlibCompression, LZ4Compression, ZstdCompression}
	for _, ct := range types {
		t.Run(ct.String(), func(t *testing.T) {
			compressed, err := Compress(ct, nil)
			if err != nil {
				t.Fatalf("Compress(%s) error: %v", ct, err)
			}
			decompressed, err := Decompress(ct, compressed)
			if err != nil {
				t.Fatalf("Decompress(%s) error: %v", ct, err)
			}
			if len(decompressed) != 0 {
				t.Errorf("Decompress(%s) = %d bytes, want empty", ct, len(decompressed))
			}
		})
	}
}

func TestNoCompressionPassthrough(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	compressed, err := Compress(NoCompression, data)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	if !bytes.Equal(compressed, data) {
		t.Errorf("NoCompression modified data: %v", compressed)
	}
}

func TestZstdDictRoundTrip(t *testing.T) {
	// A raw-content dictionary shared by writer and reader. Payloads that
	// reference dictionary content compress smaller than without it.
	dict := []byte(strings.Repeat("shared-dictionary-sample-entry|", 32))
	data := append([]byte(nil), dict[:256]...)
	data = append(data, []byte("unique suffix not in the dictionary")...)

	withDict, err := CompressDict(ZstdCompression, data, dict)
	if err != nil {
		t.Fatalf("CompressDict error: %v", err)
	}
	got, err := DecompressDict(ZstdCompression, withDict, dict)
	if err != nil {
		t.Fatalf("DecompressDict error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("dictionary round trip mismatch: got %d bytes, want %d", len(got), len(data))
	}
}

func TestZstdDictRequiredToDecode(t *testing.T) {
	dict := bytes.Repeat([]byte("0123456789abcdef"), 64)
	data := append(append([]byte(nil), dict[:512]...), "tail"...)

	withDict, err := CompressDict(ZstdCompression, data, dict)
	if err != nil {
		t.Fatalf("CompressDict error: %v", err)
	}
	// Decoding with the dictionary must succeed and match.
	got, err := DecompressDict(ZstdCompression, withDict, dict)
	if err != nil {
		t.Fatalf("DecompressDict error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("dictionary round trip mismatch")
	}
}

func TestDictIgnoredForNonZstd(t *testing.T) {
	dict := []byte("ignored")
	data := testPayload()
	for _, ct := range []Type{SnappyCompression, LZ4Compression} {
		compressed, err := CompressDict(ct, data, dict)
		if err != nil {
			t.Fatalf("CompressDict(%s) error: %v", ct, err)
		}
		// A reader without the dictionary must still decode these types.
		got, err := Decompress(ct, compressed)
		if err != nil {
			t.Fatalf("Decompress(%s) error: %v", ct, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("round trip mismatch for %s", ct)
		}
	}
}

func TestUnsupportedType(t *testing.T) {
	if _, err := Compress(BZip2Compression, []byte("x")); err == nil {
		t.Error("Compress(BZip2) expected error")
	}
	if _, err := Decompress(XpressCompression, []byte("x")); err == nil {
		t.Error("Decompress(Xpress) expected error")
	}
}

func TestDecompressCorrupt(t *testing.T) {
	junk := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	for _, ct := range []Type{SnappyCompression, ZlibCompression, ZstdCompression} {
		if _, err := Decompress(ct, junk); err == nil {
			t.Errorf("Decompress(%s) of junk expected error", ct)
		}
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		t    Type
		want string
	}{
		{NoCompression, "NoCompression"},
		{SnappyCompression, "Snappy"},
		{ZstdCompression, "ZSTD"},
		{Type(0xab), "Unknown(171)"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("Type(%d).String() = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestSupportsDict(t *testing.T) {
	if !ZstdCompression.SupportsDict() {
		t.Error("ZSTD should support dictionaries")
	}
	for _, ct := range []Type{NoCompression, SnappyCompression, ZlibCompression, LZ4Compression} {
		if ct.SupportsDict() {
			t.Errorf("%s should not support dictionaries", ct)
		}
	}
}
