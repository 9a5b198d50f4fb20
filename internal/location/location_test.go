package location

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTripletValidRequiresFixAtLeastTwo(t *testing.T) {
	require.False(t, Triplet{Fix: 1}.Valid())
	require.True(t, Triplet{Fix: 2}.Valid())
	require.True(t, Triplet{Fix: 3}.Valid())
}

func TestAggregateAddTracksMinMaxAndAverage(t *testing.T) {
	var a Aggregate
	now := time.Unix(1000, 0)
	a.Add(10, 20, 0, 2, 1, 90, now)
	a.Add(12, 22, 0, 2, 1, 90, now)

	require.Equal(t, 10.0, a.Min.Lat)
	require.Equal(t, 12.0, a.Max.Lat)
	require.Equal(t, 20.0, a.Min.Lon)
	require.Equal(t, 22.0, a.Max.Lon)
	require.InDelta(t, 11.0, a.AvgLat(), 0.0001)
	require.InDelta(t, 21.0, a.AvgLon(), 0.0001)
}

func TestAggregateAltitudeOnlyTrackedWithGoodFix(t *testing.T) {
	var a Aggregate
	now := time.Unix(1000, 0)
	a.Add(10, 20, 100, 2, 0, 0, now)
	require.Equal(t, 0.0, a.Min.Alt)
	require.Equal(t, 0.0, a.Max.Alt)

	a.Add(10, 20, 150, 3, 0, 0, now)
	require.Equal(t, 150.0, a.Max.Alt)
}

func TestAggregateFixTracksHighestSeen(t *testing.T) {
	var a Aggregate
	now := time.Unix(1000, 0)
	a.Add(10, 20, 0, 2, 0, 0, now)
	a.Add(10, 20, 0, 3, 0, 0, now)
	a.Add(10, 20, 0, 2, 0, 0, now)
	require.Equal(t, 3, a.Fix)
}

func TestHistoricRRDCascadesAfter100Samples(t *testing.T) {
	var r HistoricRRD
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 100; i++ {
		r.AddSample(HistoricSample{Lat: 10, Lon: 20, Time: base.Add(time.Duration(i) * time.Second)})
	}
	require.Len(t, r.Samples100, 100)
	require.Len(t, r.Samples10k, 1)
	require.InDelta(t, 10.0, r.Samples10k[0].Lat, 0.0001)
}

func TestHistoricRRDRingsAreCappedAt100(t *testing.T) {
	var r HistoricRRD
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 250; i++ {
		r.AddSample(HistoricSample{Lat: 10, Lon: 20, Time: base.Add(time.Duration(i) * time.Second)})
	}
	require.LessOrEqual(t, len(r.Samples100), 100)
	require.LessOrEqual(t, len(r.Samples10k), 100)
}

func TestSphericalMeanOfIdenticalPointsReturnsSamePoint(t *testing.T) {
	lat, lon := sphericalMean([]float64{45, 45, 45}, []float64{-93, -93, -93})
	require.InDelta(t, 45.0, lat, 0.0001)
	require.InDelta(t, -93.0, lon, 0.0001)
}
