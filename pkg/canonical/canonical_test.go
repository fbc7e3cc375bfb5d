package canonical

import (
	"math"
	"strings"
	"testing"
)

func TestMarshalSortsKeys(t *testing.T) {
	in := map[string]any{"zebra": 1, "alpha": 2, "mid": 3}
	got, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"alpha":2,"mid":3,"zebra":1}`
	if string(got) != want {
		t.Errorf("canonical form = %s, want %s", got, want)
	}
}

func TestMarshalRespectsStructTags(t *testing.T) {
	type rec struct {
		B string `json:"b"`
		A string `json:"a"`
	}
	got, err := Marshal(rec{A: "1", B: "2"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(got) != `{"a":"1","b":"2"}` {
		t.Errorf("canonical form = %s", got)
	}
}

func TestMarshalNoHTMLEscaping(t *testing.T) {
	got, err := Marshal(map[string]string{"k": "<a>&</a>"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	// RFC 8785 keeps <, > and & literal; < style escapes must not
	// survive the transform.
	if !strings.Contains(string(got), `<a>&</a>`) {
		t.Errorf("HTML escaping leaked into canonical form: %s", got)
	}
}

func TestMarshalRejectsNaN(t *testing.T) {
	if _, err := Marshal(map[string]float64{"x": math.NaN()}); err == nil {
		t.Fatal("expected error for NaN, got nil")
	}
	if _, err := Marshal(map[string]float64{"x": math.Inf(1)}); err == nil {
		t.Fatal("expected error for +Inf, got nil")
	}
}

func TestHashDeterministic(t *testing.T) {
	a := map[string]any{"x": 1, "y": "two"}
	b := map[string]any{"y": "two", "x": 1}

	ha, err := Hash(a)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	hb, err := Hash(b)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if ha != hb {
		t.Errorf("equal values hashed differently: %s vs %s", ha, hb)
	}
	if !strings.HasPrefix(ha, HashPrefix) {
		t.Errorf("hash missing algorithm prefix: %s", ha)
	}
}

func TestHashBytesPrefix(t *testing.T) {
	h := HashBytes([]byte("abc"))
	if !strings.HasPrefix(h, "sha256:") {
		t.Fatalf("unexpected hash format: %s", h)
	}
	// sha256("abc") is a fixed vector.
	if h != "sha256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("digest mismatch: %s", h)
	}
}

func TestNormalizeString(t *testing.T) {
	composed := "café"
	decomposed := "café"
	if NormalizeString(composed) != NormalizeString(decomposed) {
		t.Error("NFC forms of equivalent strings differ")
	}
}
