package speaker

import "fmt"

// DefaultChunkDuration длительность чанка калибровки в секундах.
// Совпадает со статистикой чанков в рантайме (2-3 с).
const DefaultChunkDuration = 2.0

// Enroll строит калибровочный эмбеддинг усреднением по чанкам.
// Один эмбеддинг всей длинной записи лежит в другой области пространства,
// чем эмбеддинги коротких рантайм-чанков; усреднение чанковых эмбеддингов
// делает калибровку напрямую сравнимой с тем, что считается при матчинге.
// Результат нормализован к единичной L2-норме.
func Enroll(e Embedder, samples []float32, sampleRate int, chunkDuration float64) ([]float32, error) {
	if e == nil {
		return nil, fmt.Errorf("speaker: nil embedder")
	}
	if chunkDuration <= 0 {
		chunkDuration = DefaultChunkDuration
	}

	chunkSize := int(chunkDuration * float64(sampleRate))
	if chunkSize <= 0 {
		return nil, fmt.Errorf("speaker: invalid chunk size")
	}

	var sum []float64
	count := 0
	for start := 0; start+chunkSize <= len(samples); start += chunkSize {
		emb, err := e.EmbeddingFromAudio(samples[start:start+chunkSize], sampleRate)
		if err != nil {
			return nil, fmt.Errorf("speaker: chunk embedding failed: %w", err)
		}
		if sum == nil {
			sum = make([]float64, len(emb))
		}
		if len(emb) != len(sum) {
			return nil, fmt.Errorf("speaker: inconsistent embedding dimension %d != %d", len(emb), len(sum))
		}
		for i, v := range emb {
			sum[i] += float64(v)
		}
		count++
	}

	if count == 0 {
		// Запись короче одного чанка - эмбеддинг всей записи целиком
		return e.EmbeddingFromAudio(samples, sampleRate)
	}

	avg := make([]float32, len(sum))
	for i, v := range sum {
		avg[i] = float32(v / float64(count))
	}
	return NormalizeVector(avg), nil
}
