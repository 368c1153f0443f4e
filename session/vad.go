package session

import "math"

// Параметры энергетического VAD
const (
	vadWindowMs       = 50   // окно анализа
	vadEnergyFloor    = 0.01 // RMS-порог окна с речью
	vadConfirmWindows = 2    // подряд идущих окон для подтверждения
)

// DetectSpeechStart возвращает смещение начала речи в миллисекундах.
// Простой энергетический VAD: ищет первую серию подряд идущих окон с
// RMS выше порога. Если речь не найдена, возвращает 0.
func DetectSpeechStart(samples []float32, sampleRate int) int64 {
	if len(samples) == 0 {
		return 0
	}

	windowSamples := sampleRate * vadWindowMs / 1000
	if windowSamples <= 0 {
		windowSamples = 1
	}

	confirmed := 0
	firstWindow := -1

	for start := 0; start < len(samples); start += windowSamples {
		end := start + windowSamples
		if end > len(samples) {
			end = len(samples)
		}

		if windowRMS(samples[start:end]) >= vadEnergyFloor {
			if confirmed == 0 {
				firstWindow = start / windowSamples
			}
			confirmed++
			if confirmed >= vadConfirmWindows {
				return int64(firstWindow * vadWindowMs)
			}
		} else {
			confirmed = 0
			firstWindow = -1
		}
	}

	return 0
}

func windowRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
