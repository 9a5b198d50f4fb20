// Package rrd implements the three-tier round-robin aggregation primitive
// used throughout the system: 60 seconds-of-last-minute, 60 minutes-of-
// last-hour, 24 hours-of-last-day, plus last_time/last_value/last_value_n1.
package rrd

// Aggregator supplies the combine/default semantics an RRD cascades with.
// Implementations are pure functions so one algorithm (RRD.AddSample) can
// drive signal RRDs (peak-preferring), packet-count RRDs (summing), and
// others from the same code, per SPEC_FULL's "three-tier RRD math" note.
type Aggregator interface {
	// CombineElement folds a new sample into the current second-bucket
	// value.
	CombineElement(current, sample float64) float64
	// CombineVector aggregates 60 lower-resolution buckets into one
	// higher-resolution bucket (e.g. 60 seconds -> 1 minute).
	CombineVector(values []float64) float64
	// DefaultVal is the "empty"/unwritten bucket value.
	DefaultVal() float64
	// Name identifies the aggregator for diagnostics.
	Name() string
}

const (
	secondsPerMinute = 60
	minutesPerHour   = 60
	hoursPerDay      = 24
	secondsPerHour   = secondsPerMinute * minutesPerHour
	secondsPerDay    = secondsPerHour * hoursPerDay
)

// RRD is a fixed-size, three-ring round-robin aggregation buffer.
type RRD struct {
	agg Aggregator

	secondRing [secondsPerMinute]float64
	minuteRing [minutesPerHour]float64
	hourRing   [hoursPerDay]float64

	lastTime    int64
	lastValue   float64
	lastValueN1 float64
}

// New constructs an empty RRD backed by agg, with all buckets at the
// aggregator's default value.
func New(agg Aggregator) *RRD {
	r := &RRD{agg: agg}
	r.clearAll()
	return r
}

func (r *RRD) clearAll() {
	def := r.agg.DefaultVal()
	for i := range r.secondRing {
		r.secondRing[i] = def
	}
	for i := range r.minuteRing {
		r.minuteRing[i] = def
	}
	for i := range r.hourRing {
		r.hourRing[i] = def
	}
}

// LastTime, LastValue, LastValueN1 expose the RRD's bookkeeping fields.
func (r *RRD) LastTime() int64      { return r.lastTime }
func (r *RRD) LastValue() float64   { return r.lastValue }
func (r *RRD) LastValueN1() float64 { return r.lastValueN1 }

// SecondBucket returns the second-of-minute ring's value at index i (0-59).
func (r *RRD) SecondBucket(i int) float64 { return r.secondRing[mod(i, secondsPerMinute)] }

// MinuteBucket returns the minute-of-hour ring's value at index i (0-59).
func (r *RRD) MinuteBucket(i int) float64 { return r.minuteRing[mod(i, minutesPerHour)] }

// HourBucket returns the hour-of-day ring's value at index i (0-23).
func (r *RRD) HourBucket(i int) float64 { return r.hourRing[mod(i, hoursPerDay)] }

func mod(i, n int) int {
	m := i % n
	if m < 0 {
		m += n
	}
	return m
}

// cascadeMinuteFromSeconds recomputes the minute bucket covering t from the
// full second ring.
func (r *RRD) cascadeMinuteFromSeconds(t int64) {
	vals := make([]float64, secondsPerMinute)
	for i := range vals {
		vals[i] = r.secondRing[i]
	}
	bucket := mod(int(t/secondsPerMinute), minutesPerHour)
	r.minuteRing[bucket] = r.agg.CombineVector(vals)
}

func (r *RRD) cascadeHourFromMinutes(t int64) {
	vals := make([]float64, minutesPerHour)
	for i := range vals {
		vals[i] = r.minuteRing[i]
	}
	bucket := mod(int(t/secondsPerHour), hoursPerDay)
	r.hourRing[bucket] = r.agg.CombineVector(vals)
}

// AddSample folds value v observed at time t (unix seconds) into the RRD,
// fast-forwarding stale buckets as needed. Samples older than 60 seconds
// behind the last-seen time are discarded as out-of-order beyond tolerance.
func (r *RRD) AddSample(v float64, t int64) {
	if r.lastTime == 0 && r.lastValue == 0 && r.lastValueN1 == 0 {
		// virgin RRD: treat as if we've always been at t, so the first
		// sample lands cleanly without triggering a spurious "day gap".
		r.lastTime = t
	}

	L := r.lastTime
	delta := t - L

	switch {
	case t < L-secondsPerMinute:
		// out-of-order beyond tolerance: discard.
		return

	case delta > secondsPerDay:
		r.clearAll()
		r.secondRing[mod(int(t), secondsPerMinute)] = v
		r.cascadeMinuteFromSeconds(t)
		r.cascadeHourFromMinutes(t)
		r.lastTime = t

	case delta > secondsPerHour:
		// every second and minute bucket predates the gap; hour buckets
		// strictly between L and t saw no samples.
		def := r.agg.DefaultVal()
		for i := range r.secondRing {
			r.secondRing[i] = def
		}
		for i := range r.minuteRing {
			r.minuteRing[i] = def
		}
		for h := L/secondsPerHour + 1; h < t/secondsPerHour; h++ {
			r.hourRing[mod(int(h), hoursPerDay)] = def
		}
		r.secondRing[mod(int(t), secondsPerMinute)] = v
		r.cascadeMinuteFromSeconds(t)
		// fill the zero range up to the new hour, then write from the
		// (now up-to-date) minute ring.
		r.cascadeHourFromMinutes(t)
		r.lastTime = t

	case delta > secondsPerMinute:
		r.secondRing[mod(int(t), secondsPerMinute)] = v
		r.cascadeMinuteFromSeconds(t)
		r.lastTime = t

	default:
		bucket := mod(int(t), secondsPerMinute)
		if t == L {
			r.secondRing[bucket] = r.agg.CombineElement(r.secondRing[bucket], v)
		} else {
			r.secondRing[bucket] = v
		}
		r.cascadeMinuteFromSeconds(t)
		r.cascadeHourFromMinutes(t)
		r.lastTime = t
	}

	r.lastValueN1 = r.lastValue
	r.lastValue = v
}
