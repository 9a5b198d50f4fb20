package location

import "time"

// HistoricSample is one entry in a historic-location ring: a position
// plus the ambient heading/speed/signal/frequency seen alongside it.
type HistoricSample struct {
	Lat, Lon, Alt      float64
	Heading, Speed     float64
	Signal             int
	FreqKhz            uint64
	Time               time.Time
}

const ringCapacity = 100

// HistoricRRD keeps three rolling rings of samples: the last 100 raw
// fixes, the last 100 100-sample averages (10,000 fixes), and the last
// 100 of those averages (1,000,000 fixes) — each cascade collapses its
// full source ring into one spherically-averaged sample.
type HistoricRRD struct {
	Samples100 []HistoricSample
	Samples10k []HistoricSample
	Samples1m  []HistoricSample

	cascade100 int
	cascade10k int

	LastSampleTime time.Time
}

// AddSample appends s to the 100-ring, cascading averages upward once
// 100 new samples have accumulated at a given tier.
func (r *HistoricRRD) AddSample(s HistoricSample) {
	r.LastSampleTime = s.Time

	r.Samples100 = appendCapped(r.Samples100, s, ringCapacity)
	r.cascade100++

	if r.cascade100 < ringCapacity {
		return
	}
	r.cascade100 = 0

	agg := averageSamples(r.Samples100)
	r.Samples10k = appendCapped(r.Samples10k, agg, ringCapacity)
	r.cascade10k++

	if r.cascade10k < ringCapacity {
		return
	}
	r.cascade10k = 0

	r.Samples1m = appendCapped(r.Samples1m, averageSamples(r.Samples10k), ringCapacity)
}

func appendCapped(ring []HistoricSample, s HistoricSample, limit int) []HistoricSample {
	ring = append(ring, s)
	if len(ring) > limit {
		ring = ring[len(ring)-limit:]
	}
	return ring
}

// averageSamples collapses a ring into one sample: position is a
// spherical mean, altitude and signal are arithmetic means over the
// entries that carried a non-zero value, and heading/speed/time/frequency
// are arithmetic means over all entries.
func averageSamples(ring []HistoricSample) HistoricSample {
	lats := make([]float64, len(ring))
	lons := make([]float64, len(ring))

	var heading, speed, signal, timeSec, freq, alt float64
	var numSignal, numAlt int

	for i, s := range ring {
		lats[i] = s.Lat
		lons[i] = s.Lon

		if s.Alt != 0 {
			alt += s.Alt
			numAlt++
		}
		heading += s.Heading
		speed += s.Speed
		if s.Signal != 0 {
			signal += float64(s.Signal)
			numSignal++
		}
		timeSec += float64(s.Time.Unix())
		freq += float64(s.FreqKhz)
	}

	n := float64(len(ring))
	lat, lon := sphericalMean(lats, lons)

	var avgAlt float64
	if numAlt > 0 {
		avgAlt = alt / float64(numAlt)
	}
	var avgSignal int
	if numSignal > 0 {
		avgSignal = int(signal / float64(numSignal))
	}

	return HistoricSample{
		Lat: lat, Lon: lon, Alt: avgAlt,
		Heading: heading / n, Speed: speed / n,
		Signal:  avgSignal,
		FreqKhz: uint64(freq / n),
		Time:    time.Unix(int64(timeSec/n), 0),
	}
}
