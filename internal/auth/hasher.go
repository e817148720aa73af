package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher is the shared one-way hash abstraction used for both passwords and
// reset codes. Instances may carry different cost parameters.
type Hasher interface {
	Hash(secret string) (string, error)
	// Compare reports whether secret matches hash. It never reveals why a
	// comparison failed.
	Compare(secret, hash string) bool
}

// BcryptHasher implements Hasher with a configurable bcrypt cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher with the given cost. Costs outside the
// bcrypt range fall back to the library default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Compare(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
