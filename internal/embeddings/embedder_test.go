package embeddings

import (
	"context"
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Cosine(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("cosine(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestCosineScaleInvariant(t *testing.T) {
	a := []float32{0.2, 0.5, 0.1}
	b := []float32{0.4, 1.0, 0.2}
	if got := Cosine(a, b); math.Abs(got-1) > 1e-6 {
		t.Fatalf("scaled vectors should have similarity 1, got %v", got)
	}
}

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache(2)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "missing"); ok {
		t.Fatalf("expected miss")
	}

	cache.Put(ctx, "hello", []float32{1, 2, 3})
	vec, ok := cache.Get(ctx, "hello")
	if !ok || len(vec) != 3 || vec[2] != 3 {
		t.Fatalf("expected cached vector, got %v %v", vec, ok)
	}

	// Exceeding the cap resets the cache instead of growing unbounded.
	cache.Put(ctx, "a", []float32{1})
	cache.Put(ctx, "b", []float32{2})
	cache.Put(ctx, "c", []float32{3})
	if _, ok := cache.Get(ctx, "c"); !ok {
		t.Fatalf("latest entry should survive reset")
	}
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.1, -2.5, 1e-7, 42}
	got := decodeVector(encodeVector(vec))
	if len(got) != len(vec) {
		t.Fatalf("length mismatch: %d vs %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Fatalf("index %d: %v != %v", i, got[i], vec[i])
		}
	}
}

func TestNewOpenAIValidation(t *testing.T) {
	if _, err := NewOpenAI("", "text-embedding-3-small", nil, nil); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if _, err := NewOpenAI("sk-test", "bogus-model", nil, nil); err == nil {
		t.Fatalf("expected error for unknown model")
	}
	emb, err := NewOpenAI("sk-test", "text-embedding-3-small", nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if emb.Dimension() != 1536 {
		t.Fatalf("expected 1536 dims, got %d", emb.Dimension())
	}
}
