package internal

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULIDGenerator produces lexically sortable identifiers that stay monotonic
// within the same millisecond.
type ULIDGenerator struct {
	lk      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGenerator() *ULIDGenerator {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)

	return &ULIDGenerator{
		entropy: entropy,
	}
}

func (g *ULIDGenerator) New(t time.Time) string {
	g.lk.Lock()
	defer g.lk.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}

// Time extracts the millisecond timestamp encoded in id.
func Time(id string) (time.Time, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}

	return ulid.Time(parsed.Time()).UTC(), nil
}
