package cryptoutil

import "testing"

func TestEnvelopeRoundTrip(t *testing.T) {
	key := EnvelopeKey("alice@example.com")
	names := []string{"Alice", "", "José Núñez 日本語", "a very long name that spans multiple AES blocks of padding data"}

	for _, name := range names {
		enc, err := Encrypt(key, []byte(name))
		if err != nil {
			t.Fatalf("encrypt(%q): %v", name, err)
		}
		dec, err := Decrypt(key, enc)
		if err != nil {
			t.Fatalf("decrypt(%q): %v", name, err)
		}
		if string(dec) != name {
			t.Fatalf("round-trip mismatch: got %q, want %q", dec, name)
		}
	}
}

func TestEnvelopeWrongKeyFails(t *testing.T) {
	key := EnvelopeKey("alice@example.com")
	other := EnvelopeKey("bob@example.com")

	enc, err := Encrypt(key, []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	dec, err := Decrypt(other, enc)
	if err == nil && string(dec) == "secret" {
		t.Fatal("expected wrong key to fail to recover plaintext")
	}
}

func TestEnvelopeKeyDeterministic(t *testing.T) {
	a := EnvelopeKey("alice@example.com")
	b := EnvelopeKey("alice@example.com")
	if a != b {
		t.Fatal("expected EnvelopeKey to be deterministic for the same email")
	}
}
