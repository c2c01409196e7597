package core

import "testing"

// Benchmarks representative frame sizes, the Go analogue of the original
// Rust demo's examples/compare throughput harness.
func BenchmarkEncodeSmall(b *testing.B) {
	f := NewData([]byte("ping")).WithHeader("msg-id", []byte("1"))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(f); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeLarge(b *testing.B) {
	f := NewData(make([]byte, 64*1024))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(f); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeSmall(b *testing.B) {
	f := NewData([]byte("ping")).WithHeader("msg-id", []byte("1"))
	data, err := Encode(f)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := Decode(data, 0); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeLarge(b *testing.B) {
	f := NewData(make([]byte, 64*1024))
	data, err := Encode(f)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := Decode(data, 0); err != nil {
			b.Fatal(err)
		}
	}
}
