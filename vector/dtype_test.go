package vector

import "testing"

func TestDTypeRoundTrip(t *testing.T) {
	orig := []float64{0.0, 1.5, -2.25, 3.75}
	for _, d := range []DType{Float32, Float64} {
		b, err := d.Encode(orig)
		if err != nil {
			t.Fatalf("%s.Encode failed: %v", d, err)
		}
		if len(b) != len(orig)*d.Size() {
			t.Fatalf("%s.Encode length = %d, want %d", d, len(b), len(orig)*d.Size())
		}
		decoded, err := d.Decode(b)
		if err != nil {
			t.Fatalf("%s.Decode failed: %v", d, err)
		}
		if len(decoded) != len(orig) {
			t.Fatalf("%s decoded length = %d, want %d", d, len(decoded), len(orig))
		}
		for i := range orig {
			if decoded[i] != orig[i] {
				t.Fatalf("%s decoded[%d] = %v, want %v", d, i, decoded[i], orig[i])
			}
		}
	}
}

// TestDTypeMismatch shows that the dtype must be known out-of-band: a float64
// buffer read as float32 yields twice as many (meaningless) values.
func TestDTypeMismatch(t *testing.T) {
	b, err := Float64.Encode([]float64{1, 2})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	v, err := Float32.Decode(b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(v) != 4 {
		t.Fatalf("len = %d, want 4", len(v))
	}
	if _, err := Float64.Decode(b[:12]); err == nil {
		t.Fatal("Decode of truncated buffer: expected error")
	}
}

func TestDTypeEmpty(t *testing.T) {
	b, err := Float32.Encode(nil)
	if err != nil || b != nil {
		t.Fatalf("Encode(nil) = %v, %v; want nil, nil", b, err)
	}
	v, err := Float64.Decode(nil)
	if err != nil || v != nil {
		t.Fatalf("Decode(nil) = %v, %v; want nil, nil", v, err)
	}
}

func TestParseDType(t *testing.T) {
	cases := map[string]DType{"float32": Float32, "F4": Float32, "float64": Float64, "double": Float64, "": Float64}
	for in, want := range cases {
		got, err := ParseDType(in)
		if err != nil {
			t.Fatalf("ParseDType(%q) failed: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseDType(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseDType("int8"); err == nil {
		t.Fatal("ParseDType(int8): expected error")
	}
	if DType("bogus").Valid() {
		t.Fatal("bogus dtype reported valid")
	}
}
