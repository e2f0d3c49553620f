package services

import "testing"

func TestGenerateOTP(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateOTP()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != OTPLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), OTPLength)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("codes are not varying")
	}
}

func TestHashToken(t *testing.T) {
	first := HashToken("123456")
	second := HashToken("123456")
	if first != second {
		t.Fatal("hash is not deterministic")
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	if first == HashToken("123457") {
		t.Fatal("distinct tokens collided")
	}
	if first == "123456" {
		t.Fatal("raw token leaked through hash")
	}
}
