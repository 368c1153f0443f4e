// Package session отвечает за учёт времени разговора: накопление
// "кто сколько говорил" по чанкам, историю процента и сохранение
// итогов сессии на диск.
package session

import "time"

// Метки спикера в транскрипте
const (
	SpeakerYou   = "you"
	SpeakerOther = "other"
)

// SpeechThreshold RMS-порог живого определения речи в чанке.
// Выше гейта тишины матчера (0.0005): матчер должен работать и на очень
// тихом сигнале, а счётчик времени - только на уверенной речи.
const SpeechThreshold = 0.005

// TranscriptLine строка транскрипта с меткой спикера
type TranscriptLine struct {
	Speaker    string    `json:"speaker"` // you / other
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"` // уверенность матчера для чанка
	At         time.Time `json:"at"`
}

// Record итог завершённой сессии, сохраняется как JSON
type Record struct {
	ID           string           `json:"id"`
	StartedAt    time.Time        `json:"startedAt"`
	EndedAt      time.Time        `json:"endedAt"`
	YouSeconds   float64          `json:"youSeconds"`
	TotalSeconds float64          `json:"totalSeconds"` // только речь, тишина не считается
	Percentage   float64          `json:"percentage"`
	History      []float64        `json:"history,omitempty"` // процент после каждого чанка
	Lines        []TranscriptLine `json:"lines,omitempty"`
}

// State моментальный снимок трекера для live-отображения
type State struct {
	Tracking     bool             `json:"tracking"`
	YouSeconds   float64          `json:"youSeconds"`
	TotalSeconds float64          `json:"totalSeconds"`
	Percentage   float64          `json:"percentage"`
	History      []float64        `json:"history,omitempty"`
	Lines        []TranscriptLine `json:"lines,omitempty"`
}
