package priceaction

// SwingPoint is a confirmed local extremum of the base-interval series.
type SwingPoint struct {
	OpenTime int64
	Tick     int64
}

type direction int8

const (
	trackingHigh direction = 1
	trackingLow  direction = -1
)

const (
	// seedBoundOffset relaxes the hysteresis bound at seed time so the
	// first extremum in the tracked direction can confirm.
	seedBoundOffset = 600

	// hardRetraceTicks is the retrace depth that, combined with a
	// hysteresis break, confirms a reversal.
	hardRetraceTicks = 2000

	// confirmMinElapsed is the minimum time between confirmed opposite
	// swings: three bars at the 5-minute base granularity.
	confirmMinElapsed = 3 * 5 * 60 * 1_000_000_000
)

type pendingBar struct {
	OpenTime int64
	HighTick int64
	LowTick  int64
}

// tracking is the live extremum hunt in one direction.
type tracking struct {
	dir          direction
	extTick      int64
	extOpenTime  int64
	lastHighLow  int64 // low of the current high-extremum bar; the next low must break it
	lastLowHigh  int64 // high of the current low-extremum bar; the next high must break it
	confirmCount int
	pending      []pendingBar
}

// Swings detects alternating high/low extrema over the base interval,
// with hysteresis and a confirmation delay. It consumes one fully closed
// bar per step and never looks ahead.
//
// Highs and lows are stored in separate sequences, each monotonic in
// time; consumers interleave them by comparing trailing timestamps. A
// provisional point can be retracted (its tick zeroed) when the move
// turns out to be a fakeout, and the slot is overwritten by the next
// confirmed point on that side.
type Swings struct {
	highs []SwingPoint
	lows  []SwingPoint
	trk   *tracking
}

// NewSwings creates an undetermined swing tracker.
func NewSwings() *Swings {
	return &Swings{}
}

// Highs returns the confirmed swing highs, oldest first.
func (s *Swings) Highs() []SwingPoint { return s.highs }

// Lows returns the confirmed swing lows, oldest first.
func (s *Swings) Lows() []SwingPoint { return s.lows }

// Tracking reports the current direction: 1 hunting a high, -1 hunting a
// low, 0 undetermined.
func (s *Swings) Tracking() int8 {
	if s.trk == nil {
		return 0
	}
	return int8(s.trk.dir)
}

// Extremum returns the provisional extremum under confirmation.
func (s *Swings) Extremum() (openTime, tick int64) {
	if s.trk == nil {
		return 0, 0
	}
	return s.trk.extOpenTime, s.trk.extTick
}

// OnBarClose advances the machine with the just-closed base-interval bar.
func (s *Swings) OnBarClose(k *KLine) {
	if s.trk == nil {
		s.seed(k)
		return
	}
	if s.trk.dir == trackingHigh {
		s.trackTowardHigh(k)
	} else {
		s.trackTowardLow(k)
	}
}

// seed leaves the machine undetermined until a closed bar shows
// directional EMA stacking and a close beyond its open in the same
// direction. The seed bar's opposite extreme is recorded as the anchor
// point of the leg, so interleaved queries have a defined start.
func (s *Swings) seed(k *KLine) {
	if len(k.Emas) < 3 {
		return
	}
	fast, mid, slow := k.Emas[0], k.Emas[1], k.Emas[2]
	switch {
	case k.CloseTick > k.OpenTick && fast > mid && mid > slow:
		s.trk = &tracking{
			dir:         trackingHigh,
			extTick:     k.HighTick,
			extOpenTime: k.OpenTime,
			lastHighLow: k.LowTick,
			lastLowHigh: k.LowTick - seedBoundOffset,
		}
		s.lows = append(s.lows, SwingPoint{OpenTime: k.OpenTime, Tick: k.LowTick})
	case k.CloseTick < k.OpenTick && fast < mid && mid < slow:
		s.trk = &tracking{
			dir:         trackingLow,
			extTick:     k.LowTick,
			extOpenTime: k.OpenTime,
			lastLowHigh: k.HighTick,
			lastHighLow: k.LowTick + seedBoundOffset,
		}
		s.highs = append(s.highs, SwingPoint{OpenTime: k.OpenTime, Tick: k.HighTick})
	}
}

func (s *Swings) trackTowardHigh(k *KLine) {
	t := s.trk
	t.pending = append(t.pending, pendingBar{k.OpenTime, k.HighTick, k.LowTick})

	// Fakeout: the bar broke the last confirmed low before this high
	// confirmed. Retract that low and hunt a new one from here.
	if n := len(s.lows); n > 0 && k.LowTick < s.lows[n-1].Tick {
		s.lows[n-1].Tick = 0
		t.dir = trackingLow
		t.extTick = k.LowTick
		t.extOpenTime = k.OpenTime
		t.lastLowHigh = k.HighTick
		t.confirmCount = 0
		t.pending = t.pending[:0]
		return
	}

	if k.HighTick > t.extTick {
		t.extTick = k.HighTick
		t.extOpenTime = k.OpenTime
		t.lastHighLow = k.LowTick
		t.confirmCount = 0
		t.pending = t.pending[:0]
	} else {
		t.confirmCount++
	}

	var lastLow SwingPoint
	if n := len(s.lows); n > 0 {
		lastLow = s.lows[n-1]
	}
	doubleBottom := len(s.lows) > 0 && k.LowTick <= lastLow.Tick
	brokeBound := k.HighTick < t.lastHighLow
	deepRetrace := t.extTick-k.LowTick > hardRetraceTicks &&
		k.OpenTime != t.extOpenTime && k.LowTick < t.lastHighLow

	if t.extOpenTime-lastLow.OpenTime > confirmMinElapsed &&
		(doubleBottom || brokeBound || deepRetrace) {
		s.confirmHigh(SwingPoint{OpenTime: t.extOpenTime, Tick: t.extTick})
		t.dir = trackingLow
		t.extTick = k.LowTick
		t.extOpenTime = k.OpenTime
		t.lastLowHigh = k.HighTick
		t.confirmCount = 0
		t.pending = t.pending[:0]
	}
}

func (s *Swings) trackTowardLow(k *KLine) {
	t := s.trk
	t.pending = append(t.pending, pendingBar{k.OpenTime, k.HighTick, k.LowTick})

	if n := len(s.highs); n > 0 && k.HighTick > s.highs[n-1].Tick {
		s.highs[n-1].Tick = 0
		t.dir = trackingHigh
		t.extTick = k.HighTick
		t.extOpenTime = k.OpenTime
		t.lastHighLow = k.LowTick
		t.confirmCount = 0
		t.pending = t.pending[:0]
		return
	}

	if k.LowTick < t.extTick {
		t.extTick = k.LowTick
		t.extOpenTime = k.OpenTime
		t.lastLowHigh = k.HighTick
		t.confirmCount = 0
		t.pending = t.pending[:0]
	} else {
		t.confirmCount++
	}

	var lastHigh SwingPoint
	if n := len(s.highs); n > 0 {
		lastHigh = s.highs[n-1]
	}
	doubleTop := len(s.highs) > 0 && k.HighTick >= lastHigh.Tick
	brokeBound := k.LowTick > t.lastLowHigh
	deepRetrace := k.HighTick-t.extTick > hardRetraceTicks &&
		k.OpenTime != t.extOpenTime && k.HighTick > t.lastLowHigh

	if t.extOpenTime-lastHigh.OpenTime > confirmMinElapsed &&
		(doubleTop || brokeBound || deepRetrace) {
		s.confirmLow(SwingPoint{OpenTime: t.extOpenTime, Tick: t.extTick})
		t.dir = trackingHigh
		t.extTick = k.HighTick
		t.extOpenTime = k.OpenTime
		t.lastHighLow = k.LowTick
		t.confirmCount = 0
		t.pending = t.pending[:0]
	}
}

func (s *Swings) confirmHigh(p SwingPoint) {
	if n := len(s.highs); n > 0 && s.highs[n-1].Tick == 0 {
		s.highs[n-1] = p
		return
	}
	s.highs = append(s.highs, p)
}

func (s *Swings) confirmLow(p SwingPoint) {
	if n := len(s.lows); n > 0 && s.lows[n-1].Tick == 0 {
		s.lows[n-1] = p
		return
	}
	s.lows = append(s.lows, p)
}
