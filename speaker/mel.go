package speaker

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Параметры фронтенда WeSpeaker-совместимых моделей: 80 mel-каналов,
// окно 25 мс, шаг 10 мс при 16 кГц.
const (
	melSampleRate = 16000
	melChannels   = 80
	melHopLength  = 160
	melWinLength  = 400
	melFFTSize    = 512
)

// melFrontend вычисляет log-mel признаки, которые модель эмбеддингов
// принимает на вход. Фильтры и окно строятся один раз при создании.
type melFrontend struct {
	filters [][]float64 // [melChannels][melFFTSize/2+1]
	window  []float64
	fft     *fourier.FFT
}

func newMelFrontend() *melFrontend {
	return &melFrontend{
		filters: melFiltersHz(melChannels, melFFTSize, melSampleRate),
		window:  hannWindow(melWinLength),
		fft:     fourier.NewFFT(melFFTSize),
	}
}

// compute возвращает log-mel признаки как плоский массив [numFrames*melChannels]
// в row-major порядке (готовый вход тензора [1, T, 80]) и число фреймов.
// Фреймы выровнены по левому краю, без центрирования.
func (f *melFrontend) compute(samples []float32) ([]float32, int) {
	numFrames := 1
	if len(samples) >= melWinLength {
		numFrames = (len(samples)-melWinLength)/melHopLength + 1
	}

	numBins := melFFTSize/2 + 1
	frame := make([]float64, melFFTSize)
	power := make([]float64, numBins)
	features := make([]float32, numFrames*melChannels)

	for t := 0; t < numFrames; t++ {
		start := t * melHopLength

		for i := 0; i < melFFTSize; i++ {
			frame[i] = 0
		}
		for i := 0; i < melWinLength; i++ {
			idx := start + i
			if idx < len(samples) {
				frame[i] = float64(samples[idx]) * f.window[i]
			}
		}

		coeffs := f.fft.Coefficients(nil, frame)
		for i := 0; i < numBins; i++ {
			re := real(coeffs[i])
			im := imag(coeffs[i])
			power[i] = re*re + im*im
		}

		for m := 0; m < melChannels; m++ {
			sum := 0.0
			for k := 0; k < numBins; k++ {
				sum += power[k] * f.filters[m][k]
			}
			if sum < 1e-9 {
				sum = 1e-9
			}
			features[t*melChannels+m] = float32(math.Log(sum))
		}
	}

	return features, numFrames
}

// melFiltersHz строит треугольные mel-фильтры в частотной области
// (совместимо с torchaudio: опорные точки в Гц, не в индексах бинов)
func melFiltersHz(numFilters, fftSize, sampleRate int) [][]float64 {
	hzToMel := func(hz float64) float64 {
		return 2595.0 * math.Log10(1.0+hz/700.0)
	}
	melToHz := func(mel float64) float64 {
		return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
	}

	numBins := fftSize/2 + 1
	fMax := float64(sampleRate) / 2.0

	binFreqs := make([]float64, numBins)
	for i := range binFreqs {
		binFreqs[i] = float64(i) * fMax / float64(numBins-1)
	}

	// numFilters + 2 опорных частот: левый край, центры, правый край
	maxMel := hzToMel(fMax)
	points := make([]float64, numFilters+2)
	for i := range points {
		points[i] = melToHz(float64(i) * maxMel / float64(numFilters+1))
	}

	filters := make([][]float64, numFilters)
	for m := 0; m < numFilters; m++ {
		filters[m] = make([]float64, numBins)
		left, center, right := points[m], points[m+1], points[m+2]

		for k, freq := range binFreqs {
			lower := (freq - left) / (center - left)
			upper := (right - freq) / (right - center)
			v := math.Min(lower, upper)
			if v > 0 {
				filters[m][k] = v
			}
		}
	}

	return filters
}

func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}
