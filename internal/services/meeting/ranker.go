package meeting

import (
	"math"
	"sort"

	"github.com/sani4forever/BenchTalk-API/internal/domain/geo"
	"github.com/sani4forever/BenchTalk-API/internal/infra/overpass"
)

// fairnessWeight penalizes points that sit much closer to one user than
// the other, on top of raw combined travel distance.
const fairnessWeight = 0.5

type RankedCandidate struct {
	ExternalID      string
	SourceKind      string
	Lat             float64
	Lon             float64
	DistanceUserAKm float64
	DistanceUserBKm float64
	TotalDistanceKm float64
	FairnessGapKm   float64
	Score           float64
	Tags            map[string]string
}

// rankCandidates scores every candidate against the two user positions
// and returns them best first. Ties keep the map source's order.
// Rounding happens after sorting so presentation precision never flips
// an ordering decision.
func rankCandidates(latA, lonA, latB, lonB float64, candidates []overpass.Candidate) []RankedCandidate {
	ranked := make([]RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		dA := geo.DistanceKm(latA, lonA, c.Lat, c.Lon)
		dB := geo.DistanceKm(latB, lonB, c.Lat, c.Lon)
		total := dA + dB
		gap := math.Abs(dA - dB)

		ranked = append(ranked, RankedCandidate{
			ExternalID:      c.ExternalID,
			SourceKind:      c.SourceKind,
			Lat:             c.Lat,
			Lon:             c.Lon,
			DistanceUserAKm: dA,
			DistanceUserBKm: dB,
			TotalDistanceKm: total,
			FairnessGapKm:   gap,
			Score:           total + fairnessWeight*gap,
			Tags:            c.Tags,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})

	for i := range ranked {
		ranked[i].Lat = roundTo(ranked[i].Lat, 6)
		ranked[i].Lon = roundTo(ranked[i].Lon, 6)
		ranked[i].DistanceUserAKm = roundTo(ranked[i].DistanceUserAKm, 3)
		ranked[i].DistanceUserBKm = roundTo(ranked[i].DistanceUserBKm, 3)
		ranked[i].TotalDistanceKm = roundTo(ranked[i].TotalDistanceKm, 3)
		ranked[i].FairnessGapKm = roundTo(ranked[i].FairnessGapKm, 3)
		ranked[i].Score = roundTo(ranked[i].Score, 3)
	}

	return ranked
}

func roundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}
