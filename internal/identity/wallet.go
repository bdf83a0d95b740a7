package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const walletBytes = 20

// GenerateDemoWallet returns 0x followed by 40 random lowercase hex characters.
func GenerateDemoWallet() (string, error) {
	buf := make([]byte, walletBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return "0x" + hex.EncodeToString(buf), nil
}

// ChecksumAddress renders a valid wallet in EIP-55 mixed case. Invalid input
// is returned unchanged.
func ChecksumAddress(addr string) string {
	if !IsValidWallet(addr) {
		return addr
	}
	lower := strings.ToLower(addr[2:])
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := hex.EncodeToString(h.Sum(nil))

	var b strings.Builder
	b.WriteString("0x")
	for i, c := range lower {
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			b.WriteRune(c - ('a' - 'A'))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// ShortAddress shortens a wallet to its first 6 and last 4 characters.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
