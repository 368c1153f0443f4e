package speaker

import (
	"fmt"

	"talkmeter/voiceprint"
)

// MatchEmbedding сравнивает эмбеддинг сегмента с калибровочным эмбеддингом.
// Уверенность - монотонное отображение косинусного сходства [-1,1] в [0,1].
// Ошибка возвращается только при сбое инференса - вызывающий может
// откатиться на статистический путь.
func MatchEmbedding(e Embedder, samples []float32, sampleRate int, enrolled []float32, threshold float64) (voiceprint.MatchResult, error) {
	result := voiceprint.MatchResult{Method: voiceprint.MatchMethodEmbedding}

	if e == nil || len(enrolled) == 0 {
		return result, fmt.Errorf("speaker: embedder or enrollment missing")
	}

	current, err := e.EmbeddingFromAudio(samples, sampleRate)
	if err != nil {
		return result, err
	}

	similarity := voiceprint.CosineSimilarity(current, enrolled)

	confidence := (similarity + 1.0) / 2.0
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	result.IsMatch = similarity >= threshold
	result.Confidence = confidence
	return result, nil
}
