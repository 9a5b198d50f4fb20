package rrd

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultAggregator sums same-bucket samples and averages on cascade; this
// is the aggregator used for packet-count and byte-count RRDs.
type DefaultAggregator struct{}

func (DefaultAggregator) CombineElement(current, sample float64) float64 {
	return current + sample
}

func (DefaultAggregator) CombineVector(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	weights := make([]float64, len(values))
	for i := range weights {
		weights[i] = 1
	}
	return stat.Mean(values, weights)
}

func (DefaultAggregator) DefaultVal() float64 { return 0 }
func (DefaultAggregator) Name() string         { return "default" }

// PeakSignalAggregator keeps the strongest (closest-to-zero, i.e. least
// negative dBm) signal seen within a bucket, and cascades by taking the
// strongest of the lower-resolution buckets. Used for signal-level RRDs,
// where -40dBm is a stronger signal than -90dBm.
type PeakSignalAggregator struct{}

func (PeakSignalAggregator) CombineElement(current, sample float64) float64 {
	if current == 0 {
		return sample
	}
	if sample > current {
		return sample
	}
	return current
}

func (PeakSignalAggregator) CombineVector(values []float64) float64 {
	best := 0.0
	set := false
	for _, v := range values {
		if v == 0 {
			continue
		}
		if !set || v > best {
			best = v
			set = true
		}
	}
	return best
}

func (PeakSignalAggregator) DefaultVal() float64 { return 0 }
func (PeakSignalAggregator) Name() string         { return "peak_signal" }

// ExtremeAggregator keeps the maximum absolute value seen within a bucket,
// and the largest-magnitude value of the lower-resolution buckets on
// cascade. Used for "high water mark" counters such as
// max-seen-device-count.
type ExtremeAggregator struct{}

func (ExtremeAggregator) CombineElement(current, sample float64) float64 {
	if math.Abs(sample) > math.Abs(current) {
		return sample
	}
	return current
}

func (ExtremeAggregator) CombineVector(values []float64) float64 {
	max := 0.0
	for _, v := range values {
		if math.Abs(v) > math.Abs(max) {
			max = v
		}
	}
	return max
}

func (ExtremeAggregator) DefaultVal() float64 { return 0 }
func (ExtremeAggregator) Name() string         { return "extreme" }

// PrevPosExtremeAggregator is like ExtremeAggregator but treats 0 as "no
// sample yet" rather than a legitimate minimum, so a bucket that never saw
// a positive sample reports 0 rather than a negative value, and the
// cascade takes the largest positive bucket.
type PrevPosExtremeAggregator struct{}

func (PrevPosExtremeAggregator) CombineElement(current, sample float64) float64 {
	if sample <= 0 {
		return current
	}
	if current <= 0 || sample > current {
		return sample
	}
	return current
}

func (PrevPosExtremeAggregator) CombineVector(values []float64) float64 {
	max := 0.0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}

func (PrevPosExtremeAggregator) DefaultVal() float64 { return 0 }
func (PrevPosExtremeAggregator) Name() string         { return "prev_pos_extreme" }
