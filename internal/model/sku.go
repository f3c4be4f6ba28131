package model

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const skuAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateSKU returns a stock-keeping code of the form WHS-<unix ms>-<6 chars>.
func GenerateSKU(now time.Time) string {
	var b strings.Builder
	b.WriteString("WHS-")
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('-')
	max := big.NewInt(int64(len(skuAlphabet)))
	for range 6 {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(err)
		}
		b.WriteByte(skuAlphabet[n.Int64()])
	}
	return b.String()
}
