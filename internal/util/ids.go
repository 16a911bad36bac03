package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func GenerateUUID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// GenerateOrderNumber returns PREFIX-YYYYMMDD-XXXX.
func GenerateOrderNumber(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), RandomReference(4))
}

// GenerateTransactionID returns PREFIX_XXXXXXXXXXXXXXXX_<unix seconds>.
func GenerateTransactionID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", prefix, RandomReference(16), now.Unix())
}

func RandomReference(n int) string {
	buf := make([]byte, n)
	limit := big.NewInt(int64(len(referenceAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
		}
		buf[i] = referenceAlphabet[idx.Int64()]
	}
	return string(buf)
}
