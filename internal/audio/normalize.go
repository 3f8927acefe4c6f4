package audio

import (
	"fmt"
	"math"
)

// Strategy selects how samples are scaled before encoding.
type Strategy string

const (
	StrategyLoudness Strategy = "loudness"
	StrategyPeak     Strategy = "peak"
	StrategyRMS      Strategy = "rms"
	StrategyClip     Strategy = "clip"
	StrategyNone     Strategy = "none"
)

// Default headroom per strategy, in dB below full scale.
const (
	DefaultLoudnessHeadroomDB = 14
	DefaultRMSHeadroomDB      = 18
	DefaultPeakHeadroomDB     = 1
)

// EncodingOptions controls normalization when audio is written.
type EncodingOptions struct {
	Strategy Strategy
	// HeadroomDB is the target level below full scale. Zero selects the strategy default.
	HeadroomDB float64
	// Compressor applies a tanh soft limiter after loudness normalization.
	Compressor bool
}

// DefaultEncodingOptions is loudness normalization with the compressor enabled.
func DefaultEncodingOptions() EncodingOptions {
	return EncodingOptions{
		Strategy:   StrategyLoudness,
		HeadroomDB: DefaultLoudnessHeadroomDB,
		Compressor: true,
	}
}

// ParseStrategy validates a strategy name. Empty means loudness.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case "":
		return StrategyLoudness, nil
	case StrategyLoudness, StrategyPeak, StrategyRMS, StrategyClip, StrategyNone:
		return st, nil
	default:
		return "", fmt.Errorf("unknown normalization strategy %q", s)
	}
}

// Normalize returns a new buffer scaled according to opts. The input is not modified.
func Normalize(buf *Buffer, opts EncodingOptions) (*Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	out := &Buffer{
		Samples:    make([]float32, len(buf.Samples)),
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
	}
	copy(out.Samples, buf.Samples)

	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyLoudness
	}

	switch strategy {
	case StrategyNone:
		return out, nil
	case StrategyClip:
		// clamped below
	case StrategyPeak:
		peak := peakOf(out.Samples)
		if peak > 0 {
			scaleBy(out.Samples, dbToGain(-headroom(opts, DefaultPeakHeadroomDB))/peak)
		}
	case StrategyRMS:
		rms := rmsOf(out.Samples)
		if rms > 0 {
			scaleBy(out.Samples, dbToGain(-headroom(opts, DefaultRMSHeadroomDB))/rms)
		}
	case StrategyLoudness:
		if lufs, ok := loudnessOf(out.Samples); ok {
			gainDB := -headroom(opts, DefaultLoudnessHeadroomDB) - lufs
			scaleBy(out.Samples, dbToGain(gainDB))
		}
		if opts.Compressor {
			for i, s := range out.Samples {
				out.Samples[i] = float32(math.Tanh(float64(s)))
			}
		}
	default:
		return nil, fmt.Errorf("unknown normalization strategy %q", strategy)
	}

	for i, s := range out.Samples {
		out.Samples[i] = clamp(s)
	}
	return out, nil
}

func headroom(opts EncodingOptions, fallback float64) float64 {
	if opts.HeadroomDB > 0 {
		return opts.HeadroomDB
	}
	return fallback
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

func scaleBy(samples []float32, gain float64) {
	for i, s := range samples {
		samples[i] = float32(float64(s) * gain)
	}
}

func peakOf(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	return peak
}

func rmsOf(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// loudnessOf approximates integrated loudness in LUFS from the mean square,
// without K-weighting or gating. Silence reports false.
func loudnessOf(samples []float32) (float64, bool) {
	rms := rmsOf(samples)
	if rms <= 0 {
		return 0, false
	}
	return -0.691 + 20*math.Log10(rms), true
}
