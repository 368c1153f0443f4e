// Package dsp реализует извлечение акустических признаков из сырого аудио.
// Все функции детерминированы и не имеют состояния: одинаковый вход и
// конфигурация дают побитово одинаковый результат.
package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Параметры по умолчанию для извлечения MFCC
const (
	DefaultNumCoeffs = 20  // количество кепстральных коэффициентов
	DefaultFrameSize = 512 // размер фрейма (FFT)
	DefaultHopSize   = 256 // шаг между фреймами

	// NumMelFilters количество треугольных mel-фильтров
	NumMelFilters = 26

	// logFloor минимальная энергия перед логарифмом (защита от -inf)
	logFloor = 1e-10
)

// ExtractMFCC извлекает MFCC признаки из аудио.
// samples - моно float32, sampleRate Гц.
// Возвращает матрицу [numFrames][numCoeffs].
// Слишком короткий вход дополняется нулями до одного полного фрейма,
// поэтому результат всегда содержит минимум одну строку.
func ExtractMFCC(samples []float32, sampleRate, numCoeffs, frameSize, hopSize int) [][]float64 {
	// Нарезка на перекрывающиеся фреймы
	numFrames := 0
	if len(samples) >= frameSize {
		numFrames = 1 + (len(samples)-frameSize)/hopSize
	}
	if numFrames < 1 {
		padded := make([]float32, frameSize)
		copy(padded, samples)
		samples = padded
		numFrames = 1
	}

	window := hammingWindow(frameSize)
	fft := fourier.NewFFT(frameSize)
	filterbank := melFilterbank(NumMelFilters, frameSize, sampleRate)
	dct := dctMatrix(numCoeffs, NumMelFilters)

	numBins := frameSize/2 + 1
	frame := make([]float64, frameSize)
	power := make([]float64, numBins)
	melEnergies := make([]float64, NumMelFilters)

	mfcc := make([][]float64, numFrames)
	for f := 0; f < numFrames; f++ {
		start := f * hopSize
		for i := 0; i < frameSize; i++ {
			frame[i] = float64(samples[start+i]) * window[i]
		}

		// Спектр мощности (только положительные частоты)
		coeffs := fft.Coefficients(nil, frame)
		for i := 0; i < numBins; i++ {
			re := real(coeffs[i])
			im := imag(coeffs[i])
			power[i] = re*re + im*im
		}

		// Проекция через mel-фильтры + логарифм энергий
		for m := 0; m < NumMelFilters; m++ {
			sum := 0.0
			for k := 0; k < numBins; k++ {
				sum += power[k] * filterbank[m][k]
			}
			if sum < logFloor {
				sum = logFloor
			}
			melEnergies[m] = math.Log(sum)
		}

		// DCT-II по каналам фильтров -> кепстральные коэффициенты
		row := make([]float64, numCoeffs)
		for i := 0; i < numCoeffs; i++ {
			sum := 0.0
			for j := 0; j < NumMelFilters; j++ {
				sum += melEnergies[j] * dct[i][j]
			}
			row[i] = sum
		}
		mfcc[f] = row
	}

	return mfcc
}

// hzToMel преобразует частоту из Гц в mel-шкалу (формула HTK)
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz преобразует mel обратно в Гц
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilterbank строит матрицу треугольных mel-фильтров [numFilters][fftSize/2+1].
// Края фильтров равномерны в mel-шкале от 0 Гц до Найквиста и
// привязаны к индексам FFT-бинов.
func melFilterbank(numFilters, fftSize, sampleRate int) [][]float64 {
	lowMel := 0.0
	highMel := hzToMel(float64(sampleRate) / 2.0)

	// numFilters + 2 опорных точек: левый край, центры, правый край
	binPoints := make([]int, numFilters+2)
	for i := range binPoints {
		mel := lowMel + float64(i)*(highMel-lowMel)/float64(numFilters+1)
		hz := melToHz(mel)
		binPoints[i] = int(math.Floor(float64(fftSize+1) * hz / float64(sampleRate)))
	}

	numBins := fftSize/2 + 1
	filterbank := make([][]float64, numFilters)
	for m := 0; m < numFilters; m++ {
		filterbank[m] = make([]float64, numBins)
		left, center, right := binPoints[m], binPoints[m+1], binPoints[m+2]

		for j := left; j < center && j < numBins; j++ {
			filterbank[m][j] = float64(j-left) / float64(center-left)
		}
		for j := center; j < right && j < numBins; j++ {
			filterbank[m][j] = float64(right-j) / float64(right-center)
		}
	}

	return filterbank
}

// dctMatrix строит матрицу DCT-II [numCoeffs][numFilters]
func dctMatrix(numCoeffs, numFilters int) [][]float64 {
	dct := make([][]float64, numCoeffs)
	for i := 0; i < numCoeffs; i++ {
		dct[i] = make([]float64, numFilters)
		for j := 0; j < numFilters; j++ {
			dct[i][j] = math.Cos(math.Pi * float64(i) * (float64(j) + 0.5) / float64(numFilters))
		}
	}
	return dct
}

// hammingWindow возвращает окно Хэмминга длины size
func hammingWindow(size int) []float64 {
	window := make([]float64, size)
	for i := 0; i < size; i++ {
		window[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(size-1))
	}
	return window
}
