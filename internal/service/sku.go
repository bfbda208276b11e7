package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	skuAlphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	skuSuffixLength = 8
	skuPrefixLength = 3
)

// skuPrefix upper-cases the first three characters of name and replaces
// anything outside A-Z with X. Short names are padded with X.
func skuPrefix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if b.Len() == skuPrefixLength {
			break
		}
		if r < 'A' || r > 'Z' {
			r = 'X'
		}
		b.WriteRune(r)
	}
	for b.Len() < skuPrefixLength {
		b.WriteByte('X')
	}
	return b.String()
}

// GenerateSKU returns "<PREFIX>-<shopID>-<8 random [0-9A-Z]>". Uniqueness
// is probabilistic; a collision within the shop is rejected by the store.
func GenerateSKU(name string, shopID int64) (string, error) {
	suffix := make([]byte, skuSuffixLength)
	base := big.NewInt(int64(len(skuAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("generate sku: %w", err)
		}
		suffix[i] = skuAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%d-%s", skuPrefix(name), shopID, suffix), nil
}
