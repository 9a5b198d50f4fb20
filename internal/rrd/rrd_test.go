package rrd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultAggregatorCombinesBySum(t *testing.T) {
	r := New(DefaultAggregator{})
	r.AddSample(3, 100)
	r.AddSample(4, 100)
	require.Equal(t, float64(7), r.SecondBucket(int(100)))
}

func TestAddSampleWithinMinuteCascadesToMinuteRing(t *testing.T) {
	r := New(DefaultAggregator{})
	r.AddSample(2, 0)
	r.AddSample(2, 1)
	require.NotZero(t, r.MinuteBucket(0))
}

func TestAddSampleDiscardsStaleBeyondTolerance(t *testing.T) {
	r := New(DefaultAggregator{})
	r.AddSample(5, 1000)
	r.AddSample(99, 900) // 100s behind: beyond the 60s tolerance window.
	require.Equal(t, int64(1000), r.LastTime())
	require.Equal(t, float64(5), r.LastValue())
}

func TestAddSampleHourGapClearsOnlyStaleWindow(t *testing.T) {
	r := New(DefaultAggregator{})
	r.AddSample(10, 0)
	r.AddSample(20, 3700) // > 1hr later
	require.Equal(t, int64(3700), r.LastTime())
	require.Equal(t, float64(20), r.LastValue())
	require.Equal(t, float64(10), r.LastValueN1())
}

func TestAddSampleDayGapResetsAllRings(t *testing.T) {
	r := New(DefaultAggregator{})
	r.AddSample(10, 0)
	r.AddSample(20, 100000) // > 86400s later
	require.Equal(t, int64(100000), r.LastTime())
	freshHour := (100000 / secondsPerHour) % hoursPerDay
	for i := 0; i < hoursPerDay; i++ {
		if i == freshHour {
			continue
		}
		require.Zero(t, r.HourBucket(i))
	}
}

func TestPeakSignalAggregatorKeepsStrongest(t *testing.T) {
	agg := PeakSignalAggregator{}
	require.Equal(t, float64(-40), agg.CombineElement(-70, -40))
	require.Equal(t, float64(-40), agg.CombineElement(-40, -70))
}

func TestExtremeAggregatorKeepsMax(t *testing.T) {
	agg := ExtremeAggregator{}
	require.Equal(t, float64(5), agg.CombineElement(5, 3))
	require.Equal(t, float64(9), agg.CombineElement(5, 9))
}

func TestPrevPosExtremeIgnoresNonPositiveSamples(t *testing.T) {
	agg := PrevPosExtremeAggregator{}
	require.Equal(t, float64(5), agg.CombineElement(5, -1))
	require.Equal(t, float64(5), agg.CombineElement(5, 0))
	require.Equal(t, float64(8), agg.CombineElement(5, 8))
}

func TestLastValueTracksN1(t *testing.T) {
	r := New(DefaultAggregator{})
	r.AddSample(1, 10)
	r.AddSample(2, 20)
	r.AddSample(3, 30)
	require.Equal(t, float64(3), r.LastValue())
	require.Equal(t, float64(2), r.LastValueN1())
}
