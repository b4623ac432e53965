package booking

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	pnrLength   = 6
	pnrAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var pnrPattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// GeneratePNR draws a 6-character code uniformly from A-Z and 0-9.
func GeneratePNR() (string, error) {
	limit := big.NewInt(int64(len(pnrAlphabet)))
	code := make([]byte, pnrLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		code[i] = pnrAlphabet[n.Int64()]
	}
	return string(code), nil
}

func ValidPNR(code string) bool {
	return pnrPattern.MatchString(code)
}
