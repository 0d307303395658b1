package secrets

import "testing"

func TestSealOpenRoundtrip(t *testing.T) {
	box := NewBox("unit-test-secret")

	tests := []string{"secret", "admin123", "p@ss with spaces", "ñandú"}
	for _, plain := range tests {
		sealed, err := box.Seal(plain)
		if err != nil {
			t.Fatalf("Seal(%q) error: %v", plain, err)
		}
		if sealed == plain {
			t.Errorf("Seal(%q) returned plaintext", plain)
		}
		got, err := box.Open(sealed)
		if err != nil {
			t.Fatalf("Open error: %v", err)
		}
		if got != plain {
			t.Errorf("roundtrip = %q, want %q", got, plain)
		}
	}
}

func TestSealEmptyStaysEmpty(t *testing.T) {
	box := NewBox("unit-test-secret")
	sealed, err := box.Seal("")
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	if sealed != "" {
		t.Errorf("Seal(\"\") = %q, want empty", sealed)
	}
}

func TestSealRandomizesNonce(t *testing.T) {
	box := NewBox("unit-test-secret")
	a, _ := box.Seal("same input")
	b, _ := box.Seal("same input")
	if a == b {
		t.Error("two Seal calls produced identical ciphertext")
	}
}

func TestOpenWrongKeyFails(t *testing.T) {
	sealed, _ := NewBox("key-one").Seal("secret")
	if _, err := NewBox("key-two").Open(sealed); err == nil {
		t.Error("Open with wrong key succeeded")
	}
}

func TestOpenMalformed(t *testing.T) {
	box := NewBox("unit-test-secret")
	for _, bad := range []string{"not base64 !!!", "c2hvcnQ="} {
		if _, err := box.Open(bad); err == nil {
			t.Errorf("Open(%q) succeeded, want error", bad)
		}
	}
}
