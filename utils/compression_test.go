package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("extracted document text ", 200))

	for _, algo := range []CompressionAlgorithm{CompressionNone, CompressionGzip, CompressionBrotli} {
		compressed, err := CompressData(data, algo)
		if err != nil {
			t.Fatalf("%s compress: %v", algo, err)
		}
		restored, err := DecompressData(compressed, algo)
		if err != nil {
			t.Fatalf("%s decompress: %v", algo, err)
		}
		if !bytes.Equal(restored, data) {
			t.Fatalf("%s round trip mismatch", algo)
		}
		if algo != CompressionNone && len(compressed) >= len(data) {
			t.Errorf("%s did not shrink repetitive input", algo)
		}
	}
}

func TestCompressTextDefaultsToBrotli(t *testing.T) {
	compressed, algo, err := CompressText("hello hello hello hello")
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if algo != CompressionBrotli {
		t.Fatalf("expected brotli, got %s", algo)
	}
	text, err := DecompressText(compressed, algo)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if text != "hello hello hello hello" {
		t.Fatalf("round trip mismatch: %q", text)
	}
}

func TestCompressUnknownAlgorithm(t *testing.T) {
	if _, err := CompressData([]byte("x"), CompressionAlgorithm("zstd")); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}
