package diarize

import (
	"fmt"
	"log"
	"sort"

	"talkmeter/speaker"
	"talkmeter/voiceprint"
)

// SpeakerSummary итог по одному спикеру записи
type SpeakerSummary struct {
	Speaker       int     `json:"speaker"`
	Seconds       float64 `json:"seconds"`
	Turns         int     `json:"turns"`
	AvgSimilarity float64 `json:"avgSimilarity"` // среднее сходство с калибровкой
}

// Summary сводка по всей записи
type Summary struct {
	Speakers     []SpeakerSummary `json:"speakers"` // по убыванию времени
	YouSpeaker   int              `json:"youSpeaker"`
	YouSeconds   float64          `json:"youSeconds"`
	TotalSeconds float64          `json:"totalSeconds"`
	YouPercent   float64          `json:"youPercent"`
}

// Summarize скорит речевые ходы против калибровочного эмбеддинга и
// агрегирует время по спикерам. Пользователем считается спикер с
// максимальным средним сходством. Ходы короче minDuration пропускаются.
// Использует те же примитивы эмбеддинга/сходства, что и живой матчинг.
func Summarize(turns []Turn, samples []float32, sampleRate int, emb speaker.Embedder, enrolled []float32, minDuration float64) (*Summary, error) {
	if emb == nil || len(enrolled) == 0 {
		return nil, fmt.Errorf("diarize: embedder and enrollment are required")
	}

	durations := make(map[int]float64)
	turnCounts := make(map[int]int)
	similaritySums := make(map[int]float64)
	scoredCounts := make(map[int]int)

	for _, turn := range turns {
		if turn.Duration() < minDuration {
			continue
		}

		startIdx := int(turn.Start * float64(sampleRate))
		endIdx := int(turn.End * float64(sampleRate))
		if startIdx < 0 {
			startIdx = 0
		}
		if endIdx > len(samples) {
			endIdx = len(samples)
		}
		if endIdx <= startIdx {
			continue
		}

		segEmbedding, err := emb.EmbeddingFromAudio(samples[startIdx:endIdx], sampleRate)
		if err != nil {
			// Единичный сбой не валит всю сводку
			log.Printf("[Diarize] Turn %.1f-%.1fs embedding failed, skipped: %v",
				turn.Start, turn.End, err)
			continue
		}

		similarity := voiceprint.CosineSimilarity(segEmbedding, enrolled)
		durations[turn.Speaker] += turn.Duration()
		turnCounts[turn.Speaker]++
		similaritySums[turn.Speaker] += similarity
		scoredCounts[turn.Speaker]++
	}

	if len(durations) == 0 {
		return nil, fmt.Errorf("diarize: no scorable turns (try lowering the minimum duration)")
	}

	summary := &Summary{YouSpeaker: -1}
	bestSimilarity := -2.0
	for spk, dur := range durations {
		avg := similaritySums[spk] / float64(scoredCounts[spk])
		summary.Speakers = append(summary.Speakers, SpeakerSummary{
			Speaker:       spk,
			Seconds:       dur,
			Turns:         turnCounts[spk],
			AvgSimilarity: avg,
		})
		summary.TotalSeconds += dur
		if avg > bestSimilarity {
			bestSimilarity = avg
			summary.YouSpeaker = spk
		}
	}

	sort.Slice(summary.Speakers, func(i, j int) bool {
		return summary.Speakers[i].Seconds > summary.Speakers[j].Seconds
	})

	summary.YouSeconds = durations[summary.YouSpeaker]
	if summary.TotalSeconds > 0 {
		summary.YouPercent = summary.YouSeconds / summary.TotalSeconds * 100
	}

	return summary, nil
}
