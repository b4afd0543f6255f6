package utils

import "golang.org/x/crypto/bcrypt"

// HashKey returns the bcrypt hash of an admin API key.
func HashKey(plain string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyKey safely compares a bcrypt hash and a presented key.
func VerifyKey(hash, plain string) bool {
	if hash == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
