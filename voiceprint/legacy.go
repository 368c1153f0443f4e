package voiceprint

import (
	"fmt"

	"talkmeter/dsp"
)

// legacySimilarityThreshold порог косинусного сходства упрощённого матчера.
// Шкала несовместима с порогами GMM-пути и не должна с ними смешиваться.
const legacySimilarityThreshold = 0.6

// LegacyProfile упрощённый профиль: усреднённые MFCC плюс спектральная
// сводка всего сигнала. Оставлен как альтернативная стратегия матчинга -
// дешевле GMM, но заметно грубее.
type LegacyProfile struct {
	MFCCMean []float64 `json:"mfccMean"`
	Centroid float64   `json:"centroid"`
	Rolloff  float64   `json:"rolloff"`
}

// CreateLegacyProfile строит упрощённый профиль из калибровочной записи
func CreateLegacyProfile(samples []float32, sampleRate int) (*LegacyProfile, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("voiceprint: empty calibration audio")
	}

	mfcc := dsp.ExtractMFCC(samples, sampleRate,
		dsp.DefaultNumCoeffs, dsp.DefaultFrameSize, dsp.DefaultHopSize)
	centroid, rolloff := dsp.SpectralFeatures(samples, sampleRate)

	return &LegacyProfile{
		MFCCMean: meanRows(mfcc),
		Centroid: centroid,
		Rolloff:  rolloff,
	}, nil
}

// MatchLegacy сравнивает сегмент с упрощённым профилем по косинусному
// сходству объединённого вектора признаков. Уверенность - само сходство,
// обрезанное в [0, 1].
func MatchLegacy(segment []float32, profile *LegacyProfile, sampleRate int) MatchResult {
	noMatch := MatchResult{Method: MatchMethodLegacy}
	if profile == nil {
		noMatch.Method = MatchMethodNone
		return noMatch
	}

	// У этого пути свой, более высокий гейт тишины
	if dsp.RMS(segment) < LegacySilenceRMS {
		return noMatch
	}

	mfcc := dsp.ExtractMFCC(segment, sampleRate,
		dsp.DefaultNumCoeffs, dsp.DefaultFrameSize, dsp.DefaultHopSize)
	centroid, rolloff := dsp.SpectralFeatures(segment, sampleRate)

	sim := cosineSimilarity64(
		legacyFeatureVector(meanRows(mfcc), centroid, rolloff),
		legacyFeatureVector(profile.MFCCMean, profile.Centroid, profile.Rolloff),
	)

	confidence := sim
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return MatchResult{
		IsMatch:    sim >= legacySimilarityThreshold,
		Confidence: confidence,
		Method:     MatchMethodLegacy,
	}
}

// legacyFeatureVector объединяет MFCC-средние со спектральной сводкой.
// Частоты приводятся к кГц, чтобы не доминировать над кепстральными
// коэффициентами.
func legacyFeatureVector(mfccMean []float64, centroid, rolloff float64) []float64 {
	v := make([]float64, 0, len(mfccMean)+2)
	v = append(v, mfccMean...)
	v = append(v, centroid/1000.0, rolloff/1000.0)
	return v
}

// meanRows усредняет матрицу признаков по времени
func meanRows(m [][]float64) []float64 {
	if len(m) == 0 {
		return nil
	}
	out := make([]float64, len(m[0]))
	for _, row := range m {
		for i, v := range row {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(m))
	}
	return out
}
