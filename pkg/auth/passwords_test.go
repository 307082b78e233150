package auth

import "testing"

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("motdepasse")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	if hash == "motdepasse" {
		t.Fatal("expected hash to differ from plaintext")
	}
	if !CheckPassword(hash, "motdepasse") {
		t.Error("expected correct password to verify")
	}
	if CheckPassword(hash, "mauvais") {
		t.Error("expected wrong password to fail")
	}
}

func TestHashPassword_Salted(t *testing.T) {
	first, err := HashPassword("motdepasse")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	second, err := HashPassword("motdepasse")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	if first == second {
		t.Error("expected salted hashes to differ")
	}
}
