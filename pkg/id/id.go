package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out monotonic ULIDs. IDs generated within the same
// millisecond stay lexicographically increasing, which keeps order and
// journal ids sortable in SQLite indexes.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewGenerator seeds a PRNG from crypto/rand. A nil clock means time.Now.
func NewGenerator(now func() time.Time) *Generator {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		now:     now,
	}
}

func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now().UTC()), g.entropy)
	if err != nil {
		// Only possible if the clock goes backwards past the monotonic window
		// or entropy is exhausted.
		panic(err)
	}
	return id.String()
}

// Prefixed returns prefix + "-" + a new ULID, e.g. "paper-01J...".
func (g *Generator) Prefixed(prefix string) string {
	if prefix == "" {
		return g.New()
	}
	return prefix + "-" + g.New()
}

var std = NewGenerator(nil)

// New returns a ULID string from the package generator.
func New() string {
	return std.New()
}

// Prefixed is Generator.Prefixed on the package generator.
func Prefixed(prefix string) string {
	return std.Prefixed(prefix)
}
