package integrity

import "testing"

func TestNewKeyringValidation(t *testing.T) {
	if _, err := NewKeyring(nil, "v1"); err == nil {
		t.Fatal("expected error for missing keys")
	}
	if _, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, ""); err == nil {
		t.Fatal("expected error for missing active key id")
	}
	if _, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v2"); err == nil {
		t.Fatal("expected error for unknown active key id")
	}
}

func TestKeyringSignAndVerify(t *testing.T) {
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	sig, keyID, err := ring.Sign("20260101", "chainhash")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if keyID != "v1" {
		t.Fatalf("key id = %s, want v1", keyID)
	}
	if err := ring.Verify("20260101", "chainhash", sig, keyID); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestKeyringVerifyFailures(t *testing.T) {
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret"), "v0": []byte("old")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	sig, _, err := ring.Sign("20260101", "chainhash")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name  string
		scope string
		hash  string
		sig   string
		keyID string
	}{
		{name: "missing key id", scope: "20260101", hash: "chainhash", sig: sig, keyID: ""},
		{name: "unknown key id", scope: "20260101", hash: "chainhash", sig: sig, keyID: "v9"},
		{name: "rotated key", scope: "20260101", hash: "chainhash", sig: sig, keyID: "v0"},
		{name: "other scope", scope: "20260102", hash: "chainhash", sig: sig, keyID: "v1"},
		{name: "edited hash", scope: "20260101", hash: "chainhash2", sig: sig, keyID: "v1"},
		{name: "bad signature", scope: "20260101", hash: "chainhash", sig: "bad", keyID: "v1"},
		{name: "empty scope", scope: " ", hash: "chainhash", sig: sig, keyID: "v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ring.Verify(tt.scope, tt.hash, tt.sig, tt.keyID); err == nil {
				t.Fatal("expected verification error")
			}
		})
	}
}

func TestNilKeyring(t *testing.T) {
	var ring *Keyring
	if ring.ActiveKeyID() != "" {
		t.Fatal("expected empty key id")
	}
	if _, _, err := ring.Sign("s", "h"); err == nil {
		t.Fatal("expected sign error")
	}
	if err := ring.Verify("s", "h", "sig", "v1"); err == nil {
		t.Fatal("expected verify error")
	}
}
