package vector

import "testing"

func TestEncodeDecodeEmbedding(t *testing.T) {
	in := []float32{0.1, -2.5, 3.14159, 0}
	out, err := DecodeEmbedding(EncodeEmbedding(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d values, got %d", len(in), len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("value %d: expected %v, got %v", i, in[i], out[i])
		}
	}
}

func TestDecodeEmbedding_Invalid(t *testing.T) {
	if _, err := DecodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for blob length not a multiple of 4")
	}
}

func TestEncodeEmbedding_Empty(t *testing.T) {
	if b := EncodeEmbedding(nil); b != nil {
		t.Errorf("expected nil blob for empty vector, got %v", b)
	}
}
