package selector

import (
	"math/rand/v2"
	"sync"

	"github.com/franzego/partnernotify/internal/models"
)

// Rand draws an index uniformly from [0, n). Implementations must be safe for
// concurrent use.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// LockedRand serializes access to a seeded *rand.Rand so a deterministic
// source can be shared between requests.
type LockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLockedRand(seed1, seed2 uint64) *LockedRand {
	return &LockedRand{rnd: rand.New(rand.NewPCG(seed1, seed2))}
}

func (l *LockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.IntN(n)
}

type Selector struct {
	rnd Rand
}

// New returns a Selector drawing from rnd, or from the process-wide source
// when rnd is nil.
func New(rnd Rand) *Selector {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &Selector{rnd: rnd}
}

// Select picks one notification eligible for pageID, or nil when none is.
// candidates is not modified and the result shares no state with it.
func (s *Selector) Select(pageID string, candidates []models.Notification) *models.Notification {
	eligible := make([]int, 0, len(candidates))
	for i := range candidates {
		if candidates[i].EligibleFor(pageID) {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	picked := candidates[eligible[s.rnd.IntN(len(eligible))]].Clone()
	return &picked
}
