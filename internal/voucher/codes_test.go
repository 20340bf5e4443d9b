package voucher

import (
	"strings"
	"testing"
)

func TestGenerateCode_ShapeAndCharset(t *testing.T) {
	code, err := GenerateCode()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(code) != CodeLength {
		t.Fatalf("expected %d chars, got %d (%q)", CodeLength, len(code), code)
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("character %q outside alphabet in %q", r, code)
		}
	}
	if !isValidCode(code) {
		t.Fatalf("generated code fails its own validation: %q", code)
	}
}

func TestGenerateCode_NotObviouslyRepeating(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("duplicate code in 100 draws: %q", code)
		}
		seen[code] = struct{}{}
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  ab12cd34ef56 "); got != "AB12CD34EF56" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestIsValidCode_RejectsBadShapes(t *testing.T) {
	bad := []string{"", "SHORT", "ABCDEFGHIJK!", "abcdefghijkl", "ABCDEFGHIJKLM"}
	for _, c := range bad {
		if isValidCode(c) {
			t.Fatalf("expected %q to be invalid", c)
		}
	}
}
