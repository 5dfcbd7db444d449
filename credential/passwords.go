package credential

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var cost = bcrypt.DefaultCost

// SetCost changes the work factor used by HashSecret. Existing hashes keep verifying.
func SetCost(c int) error {
	if c < bcrypt.MinCost || c > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost %d out of range [%d, %d]", c, bcrypt.MinCost, bcrypt.MaxCost)
	}
	cost = c
	return nil
}

func Cost() int {
	return cost
}

// HashSecret returns a salted bcrypt hash of plain.
func HashSecret(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func VerifySecret(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NeedsRehash reports whether hash was produced with a cost other than the configured one.
func NeedsRehash(hash string) bool {
	c, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return c != cost
}
