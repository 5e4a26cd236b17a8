package vault

import "testing"

func TestWrapUnwrapRoundTrip(t *testing.T) {
	v, err := New("dev-secret-must-be-at-least-32-characters-long")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []string{
		"ya29.a0AfH6SMC...",
		"1//0gAbCdEfGh...",
		"",
		"unicode-ok-🔐",
	}

	for _, plaintext := range cases {
		wrapped, err := v.Wrap(plaintext)
		if err != nil {
			t.Fatalf("Wrap(%q): %v", plaintext, err)
		}
		got, err := v.Unwrap(wrapped)
		if err != nil {
			t.Fatalf("Unwrap(%q): %v", wrapped, err)
		}
		if got != plaintext {
			t.Errorf("round trip mismatch: got %q, want %q", got, plaintext)
		}
	}
}

func TestWrapIsNonDeterministic(t *testing.T) {
	v, _ := New("dev-secret-must-be-at-least-32-characters-long")
	a, _ := v.Wrap("same-plaintext")
	b, _ := v.Wrap("same-plaintext")
	if a == b {
		t.Error("expected distinct ciphertexts due to random nonce")
	}
}

func TestUnwrapRejectsMalformedCiphertext(t *testing.T) {
	v, _ := New("dev-secret-must-be-at-least-32-characters-long")
	wrapped, _ := v.Wrap("x")
	raw := []byte(wrapped)
	_ = raw

	// Corrupt by unwrapping a short garbage string.
	if _, err := v.Unwrap("AA=="); err == nil {
		t.Error("expected error for malformed ciphertext")
	}
}

func TestDifferentKeysDoNotCrossDecrypt(t *testing.T) {
	v1, _ := New("secret-one-is-at-least-32-characters-long")
	v2, _ := New("secret-two-is-at-least-32-characters-long")

	wrapped, err := v1.Wrap("top-secret-token")
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if _, err := v2.Unwrap(wrapped); err == nil {
		t.Error("expected decrypt failure under a different key")
	}
}
