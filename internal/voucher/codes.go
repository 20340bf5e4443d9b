package voucher

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// CodeLength is the fixed length of every voucher code.
const CodeLength = 12

// codeAlphabet is the 36-symbol set codes are drawn from (~62 bits of
// entropy per code). Collisions are negligible at scale but not zero;
// uniqueness is enforced by the storage layer, never assumed.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateCode produces one candidate code drawn uniformly from the
// alphabet using crypto/rand.
func GenerateCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode maps caller input onto the canonical stored form.
// Lookups are case-insensitive; storage holds uppercase only.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func isValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
