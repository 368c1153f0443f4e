package voiceprint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"talkmeter/dsp"
	"talkmeter/gmm"
)

// Параметры обучения профиля
const (
	// framesPerComponent минимум обучающих фреймов на компоненту смеси
	framesPerComponent = 20

	// maxComponents верхняя граница количества компонент
	maxComponents = 16

	// thresholdStdMargin порог = mean - margin * std обучающих правдоподобий.
	// Короткие тестовые чанки (2-3 с) имеют больший разброс оценок, чем
	// обучающее окно, поэтому фиксированный абсолютный порог ненадёжен.
	thresholdStdMargin = 1.5
)

// NumComponentsFor возвращает количество компонент смеси для данного числа
// обучающих фреймов: min(16, frames/20), но не меньше 1.
func NumComponentsFor(numFrames int) int {
	k := numFrames / framesPerComponent
	if k > maxComponents {
		k = maxComponents
	}
	if k < 1 {
		k = 1
	}
	return k
}

// CreateProfile строит профиль голоса из калибровочной записи (~10 с).
// Возвращает ошибку, если аудио не даёт ни одного пригодного фрейма -
// в этом случае запись нужно повторить.
func CreateProfile(samples []float32, sampleRate int) (*VoiceProfile, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("voiceprint: empty calibration audio")
	}

	mfcc := dsp.ExtractMFCC(samples, sampleRate,
		dsp.DefaultNumCoeffs, dsp.DefaultFrameSize, dsp.DefaultHopSize)
	if len(mfcc) == 0 {
		return nil, fmt.Errorf("voiceprint: calibration audio yielded no frames")
	}

	k := NumComponentsFor(len(mfcc))
	model, err := gmm.Fit(mfcc, k, gmm.DefaultFitOptions())
	if err != nil {
		return nil, fmt.Errorf("voiceprint: profile fitting failed: %w", err)
	}

	// Порог выводится из распределения правдоподобий самих обучающих данных:
	// шкалы лог-правдоподобий различаются между голосами.
	scores := model.ScoreSamples(mfcc)
	mean := stat.Mean(scores, nil)
	std := stat.StdDev(scores, nil)
	if math.IsNaN(std) {
		std = 0
	}

	return &VoiceProfile{
		Mixture:        model,
		ThresholdScore: mean - thresholdStdMargin*std,
	}, nil
}

// MatchVoice сравнивает сегмент аудио с профилем.
// Никогда не возвращает ошибку: тишина и вырожденные сегменты дают
// определённый не-матч с нулевой уверенностью.
func MatchVoice(segment []float32, profile *VoiceProfile, sampleRate int) MatchResult {
	noMatch := MatchResult{Method: MatchMethodGMM}
	if profile == nil || profile.Mixture == nil {
		noMatch.Method = MatchMethodNone
		return noMatch
	}

	// Гейт тишины: порог низкий, чтобы не резать тихие bluetooth-микрофоны
	if dsp.RMS(segment) < SilenceRMS {
		return noMatch
	}

	mfcc := dsp.ExtractMFCC(segment, sampleRate,
		dsp.DefaultNumCoeffs, dsp.DefaultFrameSize, dsp.DefaultHopSize)
	if len(mfcc) < minMatchFrames {
		// Недостаточно фреймов для решения
		return noMatch
	}

	avgScore := profile.Mixture.MeanLogLikelihood(mfcc)
	diff := avgScore - profile.ThresholdScore

	// Сигмоида отображает неограниченный запас лог-правдоподобия в [0,1]:
	// diff=0 даёт 0.5, знак diff определяет решение
	return MatchResult{
		IsMatch:    diff > 0,
		Confidence: sigmoid(0.5 * diff),
		Method:     MatchMethodGMM,
	}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
