package ordernum

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

const suffixLen = 4

var suffixCharset = []byte("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")

// Generate produces a human-readable order number such as
// ORD-20260830143015-7KQ2. The timestamp gives operators a rough ordering and
// the random suffix keeps concurrent checkouts within the same second unique.
// Uniqueness is still enforced by the orders.order_number constraint.
func Generate(prefix string, now time.Time) (string, error) {
	if strings.TrimSpace(prefix) == "" {
		prefix = "ORD"
	}
	suffix, err := randomSuffix(suffixLen)
	if err != nil {
		return "", fmt.Errorf("generating order number suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102150405"), suffix), nil
}

func randomSuffix(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = suffixCharset[int(b)%len(suffixCharset)]
	}
	return string(buf), nil
}
