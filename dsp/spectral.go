package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// RMS вычисляет среднеквадратичную амплитуду сигнала.
// Используется как гейт тишины перед скорингом.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak возвращает максимальную абсолютную амплитуду сигнала
func Peak(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

// SpectralFeatures вычисляет спектральный центроид и rolloff (85% энергии)
// по магнитудному спектру всего сигнала. Используется только упрощённым
// косинусным матчером.
func SpectralFeatures(samples []float32, sampleRate int) (centroid, rolloff float64) {
	if len(samples) < 2 {
		return 0, 0
	}

	data := make([]float64, len(samples))
	for i, s := range samples {
		data[i] = float64(s)
	}

	fft := fourier.NewFFT(len(data))
	coeffs := fft.Coefficients(nil, data)

	// Магнитуды положительных частот
	half := len(data) / 2
	magnitudes := make([]float64, half)
	for i := 0; i < half; i++ {
		magnitudes[i] = cmplxAbs(coeffs[i])
	}

	freqStep := float64(sampleRate) / 2.0 / float64(half-1)

	var total, weighted float64
	for i, m := range magnitudes {
		total += m
		weighted += float64(i) * freqStep * m
	}
	if total <= 0 {
		return 0, 0
	}
	centroid = weighted / total

	// Rolloff: частота, ниже которой лежит 85% спектральной энергии
	target := 0.85 * total
	var cumulative float64
	rolloffIdx := half - 1
	for i, m := range magnitudes {
		cumulative += m
		if cumulative >= target {
			rolloffIdx = i
			break
		}
	}
	rolloff = float64(rolloffIdx) * freqStep

	return centroid, rolloff
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
