package feed

import (
	"math/rand"
	"time"

	"github.com/yanun0323/errors"

	"hftsim/internal/types"
)

// ChaosConfig controls feed perturbation behavior.
type ChaosConfig struct {
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	MaxJitter     time.Duration
}

// Validate ensures the config is within supported ranges.
func (c ChaosConfig) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return errors.New("chaos: dropRate must be between 0 and 1")
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return errors.New("chaos: duplicateRate must be between 0 and 1")
	}
	if c.MaxJitter < 0 {
		return errors.New("chaos: maxJitter must be >= 0")
	}
	return nil
}

// Chaos perturbs a feed to stress the latency handling of consumers:
// events can be dropped, duplicated, or have their local delivery
// delayed by a random jitter. Exchange timestamps are never touched, and
// local timestamps stay non-decreasing so the perturbed feed remains a
// valid input.
type Chaos struct {
	cfg ChaosConfig
	rng *rand.Rand
}

// NewChaos creates a feed perturber with validation.
func NewChaos(cfg ChaosConfig) (*Chaos, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Chaos{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Apply perturbs a timestamp-sorted feed and returns the result.
func (c *Chaos) Apply(events []types.Event) []types.Event {
	if c == nil {
		return events
	}

	out := make([]types.Event, 0, len(events))
	lastLocalTs := int64(0)
	for _, ev := range events {
		if c.shouldDrop() {
			continue
		}

		ev.LocalTs += c.jitter()
		if ev.LocalTs < lastLocalTs {
			ev.LocalTs = lastLocalTs
		}
		lastLocalTs = ev.LocalTs

		out = append(out, ev)
		if c.shouldDuplicate() {
			out = append(out, ev)
		}
	}
	return out
}

func (c *Chaos) shouldDrop() bool {
	return c.cfg.DropRate > 0 && c.rng.Float64() < c.cfg.DropRate
}

func (c *Chaos) shouldDuplicate() bool {
	return c.cfg.DuplicateRate > 0 && c.rng.Float64() < c.cfg.DuplicateRate
}

func (c *Chaos) jitter() int64 {
	if c.cfg.MaxJitter <= 0 {
		return 0
	}
	return c.rng.Int63n(c.cfg.MaxJitter.Nanoseconds() + 1)
}
