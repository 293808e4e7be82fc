package we

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type Revision string

const InitialRevision = Revision("00000000000000000000000000")

type RevisionGenerator struct {
	lk      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewRevisionGenerator() *RevisionGenerator {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)

	return &RevisionGenerator{
		entropy: entropy,
	}
}

func (g *RevisionGenerator) NewRevision(t time.Time) Revision {
	g.lk.Lock()
	defer g.lk.Unlock()

	return Revision(ulid.MustNew(ulid.Timestamp(t), g.entropy).String())
}

// After returns a revision generated at now that orders after latest. When
// latest carries a later time than now, the returned revision uses that time
// instead.
func (g *RevisionGenerator) After(now time.Time, latest Revision) Revision {
	if latest != "" && latest != InitialRevision {
		if parsed, err := ulid.ParseStrict(latest.String()); err == nil {
			if at := ulid.Time(parsed.Time()); !now.After(at) {
				now = at
			}
		}
	}

	for {
		revision := g.NewRevision(now)
		if revision > latest {
			return revision
		}
		now = now.Add(time.Millisecond)
	}
}

func (revision Revision) Timestamp() Timestamp {
	v := ulid.MustParse(string(revision))
	return TimestampFromTime(ulid.Time(v.Time()))
}

func (revision Revision) String() string {
	return string(revision)
}
