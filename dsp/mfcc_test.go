package dsp

import (
	"math"
	"math/rand"
	"testing"
)

// sine генерирует синус заданной частоты
func sine(freq float64, seconds float64, sampleRate int) []float32 {
	n := int(seconds * float64(sampleRate))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestExtractMFCC_FrameCount(t *testing.T) {
	sampleRate := 16000
	samples := sine(440, 1.0, sampleRate)

	mfcc := ExtractMFCC(samples, sampleRate, DefaultNumCoeffs, DefaultFrameSize, DefaultHopSize)

	// (16000 - 512) / 256 + 1 фреймов
	wantFrames := (len(samples)-DefaultFrameSize)/DefaultHopSize + 1
	if len(mfcc) != wantFrames {
		t.Fatalf("Expected %d frames, got %d", wantFrames, len(mfcc))
	}
	for i, frame := range mfcc {
		if len(frame) != DefaultNumCoeffs {
			t.Fatalf("Frame %d: expected %d coefficients, got %d", i, DefaultNumCoeffs, len(frame))
		}
	}
}

func TestExtractMFCC_ShortInputPadded(t *testing.T) {
	// Сигнал короче одного фрейма дополняется нулями до одного фрейма
	samples := sine(440, 0.01, 16000)
	mfcc := ExtractMFCC(samples, 16000, DefaultNumCoeffs, DefaultFrameSize, DefaultHopSize)
	if len(mfcc) != 1 {
		t.Errorf("Expected 1 padded frame, got %d", len(mfcc))
	}
}

func TestExtractMFCC_Deterministic(t *testing.T) {
	samples := sine(200, 0.5, 16000)

	a := ExtractMFCC(samples, 16000, DefaultNumCoeffs, DefaultFrameSize, DefaultHopSize)
	b := ExtractMFCC(samples, 16000, DefaultNumCoeffs, DefaultFrameSize, DefaultHopSize)

	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("Frame %d coeff %d differs between runs: %v != %v", i, j, a[i][j], b[i][j])
			}
		}
	}
}

func TestExtractMFCC_SilenceIsFinite(t *testing.T) {
	// Нулевой сигнал не должен давать NaN/Inf благодаря полу логарифма
	samples := make([]float32, 16000)
	mfcc := ExtractMFCC(samples, 16000, DefaultNumCoeffs, DefaultFrameSize, DefaultHopSize)

	if len(mfcc) == 0 {
		t.Fatal("Expected frames for 1s of silence")
	}
	for i, frame := range mfcc {
		for j, c := range frame {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				t.Fatalf("Frame %d coeff %d is not finite: %v", i, j, c)
			}
		}
	}
}

func TestExtractMFCC_DistinguishesSignals(t *testing.T) {
	low := ExtractMFCC(sine(150, 0.5, 16000), 16000, DefaultNumCoeffs, DefaultFrameSize, DefaultHopSize)
	high := ExtractMFCC(sine(3000, 0.5, 16000), 16000, DefaultNumCoeffs, DefaultFrameSize, DefaultHopSize)

	var dist float64
	for j := 0; j < DefaultNumCoeffs; j++ {
		d := low[0][j] - high[0][j]
		dist += d * d
	}
	if math.Sqrt(dist) < 1.0 {
		t.Errorf("MFCC of 150Hz and 3kHz tones are too close: distance %v", math.Sqrt(dist))
	}
}

func TestMelFilterbank_CoversSpectrum(t *testing.T) {
	filters := melFilterbank(NumMelFilters, DefaultFrameSize, 16000)

	if len(filters) != NumMelFilters {
		t.Fatalf("Expected %d filters, got %d", NumMelFilters, len(filters))
	}
	numBins := DefaultFrameSize/2 + 1
	for i, f := range filters {
		if len(f) != numBins {
			t.Fatalf("Filter %d: expected %d bins, got %d", i, numBins, len(f))
		}
		var sum float64
		for _, v := range f {
			if v < 0 {
				t.Fatalf("Filter %d has negative weight", i)
			}
			sum += v
		}
		if sum == 0 {
			t.Errorf("Filter %d is empty", i)
		}
	}
}

func TestHzMelRoundtrip(t *testing.T) {
	for _, hz := range []float64{0, 100, 1000, 4000, 8000} {
		back := melToHz(hzToMel(hz))
		if math.Abs(back-hz) > 1e-6 {
			t.Errorf("hz->mel->hz roundtrip for %v gave %v", hz, back)
		}
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS of empty signal: expected 0, got %v", got)
	}

	// RMS синуса амплитуды A равен A/sqrt(2)
	samples := sine(440, 1.0, 16000)
	want := 0.5 / math.Sqrt2
	if got := RMS(samples); math.Abs(got-want) > 0.01 {
		t.Errorf("RMS of 0.5 sine: expected ~%v, got %v", want, got)
	}
}

func TestSpectralFeatures_CentroidTracksFrequency(t *testing.T) {
	lowC, _ := SpectralFeatures(sine(300, 0.5, 16000), 16000)
	highC, _ := SpectralFeatures(sine(4000, 0.5, 16000), 16000)

	if lowC >= highC {
		t.Errorf("Centroid of 300Hz (%v) should be below centroid of 4kHz (%v)", lowC, highC)
	}
	if math.Abs(lowC-300) > 150 {
		t.Errorf("Centroid of pure 300Hz tone: expected ~300, got %v", lowC)
	}
}

func TestSpectralFeatures_RolloffBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	noise := make([]float32, 16000)
	for i := range noise {
		noise[i] = float32(rng.Float64()*2 - 1)
	}

	_, rolloff := SpectralFeatures(noise, 16000)
	if rolloff <= 0 || rolloff > 8000 {
		t.Errorf("Rolloff out of Nyquist range: %v", rolloff)
	}
}
