package analytics

import (
	"math"
	"sort"

	"github.com/sawpanic/binance-marketintel/internal/apperrors"
	"github.com/sawpanic/binance-marketintel/internal/persist"
)

const (
	minVolumeWindowHours = 1
	maxVolumeWindowHours = 168
	minVolumeProfileTrades = 1000
	valueAreaTarget        = 0.70
)

// VolumeProfileFromTrades computes the volume-profile primitive
// (spec.md §4.4): adaptive binning, POC as the max-volume bin, and a
// value area expanded symmetrically from the POC until it holds at
// least 70% of total volume.
func VolumeProfileFromTrades(sym string, windowHours int, tickSize float64, trades []persist.AggTrade) (VolumeProfile, error) {
	if windowHours < minVolumeWindowHours || windowHours > maxVolumeWindowHours {
		return VolumeProfile{}, apperrors.New(apperrors.InvalidInput, "volume window must be in [1,168] hours")
	}
	if len(trades) < minVolumeProfileTrades {
		return VolumeProfile{}, apperrors.NewInsufficientData(minVolumeProfileTrades, len(trades))
	}

	minPrice, maxPrice := math.Inf(1), math.Inf(-1)
	for _, t := range trades {
		p, _ := t.Price.Float64()
		if p < minPrice {
			minPrice = p
		}
		if p > maxPrice {
			maxPrice = p
		}
	}
	priceRange := maxPrice - minPrice
	if priceRange <= 0 {
		priceRange = tickSize
	}

	binSize := math.Max(tickSize*10, priceRange/100)
	if binSize <= 0 {
		binSize = 1
	}

	numBins := int(math.Ceil(priceRange/binSize)) + 1
	if numBins < 1 {
		numBins = 1
	}

	bins := make([]VolumeBin, numBins)
	for i := range bins {
		bins[i].Low = minPrice + float64(i)*binSize
		bins[i].High = bins[i].Low + binSize
	}

	var total float64
	for _, t := range trades {
		p, _ := t.Price.Float64()
		q, _ := t.Quantity.Float64()
		idx := int((p - minPrice) / binSize)
		if idx < 0 {
			idx = 0
		}
		if idx >= numBins {
			idx = numBins - 1
		}
		bins[idx].Volume += q
		bins[idx].Count++
		total += q
	}

	pocIdx := 0
	for i, b := range bins {
		if b.Volume > bins[pocIdx].Volume {
			pocIdx = i
		}
	}

	lowIdx, highIdx := pocIdx, pocIdx
	cum := bins[pocIdx].Volume
	for total > 0 && cum/total < valueAreaTarget {
		expandLow := lowIdx > 0
		expandHigh := highIdx < numBins-1
		if !expandLow && !expandHigh {
			break
		}

		lowVol := -1.0
		if expandLow {
			lowVol = bins[lowIdx-1].Volume
		}
		highVol := -1.0
		if expandHigh {
			highVol = bins[highIdx+1].Volume
		}

		if highVol >= lowVol {
			highIdx++
			cum += bins[highIdx].Volume
		} else {
			lowIdx--
			cum += bins[lowIdx].Volume
		}
	}

	return VolumeProfile{
		Symbol:      sym,
		WindowHours: windowHours,
		BinSize:     binSize,
		Bins:        bins,
		POC:         midpoint(bins[pocIdx]),
		VAH:         bins[highIdx].High,
		VAL:         bins[lowIdx].Low,
		TotalVolume: total,
		TradeCount:  len(trades),
	}, nil
}

func midpoint(b VolumeBin) float64 {
	return (b.Low + b.High) / 2
}

// medianBinVolume returns the median non-zero bin volume, used by the
// liquidity-vacuum detector.
func medianBinVolume(bins []VolumeBin) float64 {
	vols := make([]float64, 0, len(bins))
	for _, b := range bins {
		if b.Volume > 0 {
			vols = append(vols, b.Volume)
		}
	}
	sort.Float64s(vols)
	if len(vols) == 0 {
		return 0
	}
	mid := len(vols) / 2
	if len(vols)%2 == 0 {
		return (vols[mid-1] + vols[mid]) / 2
	}
	return vols[mid]
}
