package security

import (
	"crypto/subtle"
	"math/rand/v2"
	"strconv"
	"time"
)

// ResetCodeTTL is how long a password reset code stays acceptable.
const ResetCodeTTL = 300 * time.Second

const (
	resetCodeMin = 100000
	resetCodeMax = 999999
)

// ResetCodeGenerator produces 6-digit numeric password reset codes.
type ResetCodeGenerator struct{}

func NewResetCodeGenerator() *ResetCodeGenerator {
	return &ResetCodeGenerator{}
}

// Generate returns a fresh code drawn uniformly from [100000, 999999].
func (g *ResetCodeGenerator) Generate() string {
	return strconv.Itoa(resetCodeMin + rand.IntN(resetCodeMax-resetCodeMin+1))
}

// ResetCodeValid reports whether a code issued at issuedAt is still acceptable
// at now: not in the future and younger than ResetCodeTTL.
func ResetCodeValid(issuedAt, now time.Time) bool {
	if issuedAt.After(now) {
		return false
	}
	return now.Sub(issuedAt) < ResetCodeTTL
}

// ResetCodesEqual compares two codes in constant time.
func ResetCodesEqual(stored, supplied string) bool {
	if stored == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}
