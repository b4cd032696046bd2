package sections

import (
	"fmt"

	"github.com/google/uuid"
)

// IDFunc generates candidate section ids.
type IDFunc func() string

// NewID is the default generator.
func NewID() string {
	return "section-" + uuid.NewString()
}

const maxIDAttempts = 8

// uniqueID draws from gen until the id is not taken. A generator that keeps
// colliding gets a numeric suffix instead of looping forever.
func uniqueID(taken map[string]struct{}, gen IDFunc) string {
	if gen == nil {
		gen = NewID
	}
	id := gen()
	for i := 0; i < maxIDAttempts; i++ {
		if _, ok := taken[id]; !ok && id != "" {
			return id
		}
		id = gen()
	}
	base := id
	if base == "" {
		base = "section"
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
