package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker накапливает время разговора по чанкам фиксированной длины.
// Тишина не учитывается: чанк попадает в статистику только когда в нём
// была речь (решение принимает вызывающий по SpeechThreshold).
type Tracker struct {
	mu sync.Mutex

	chunkSeconds float64
	startedAt    time.Time
	tracking     bool

	youSeconds   float64
	totalSeconds float64
	history      []float64
	lines        []TranscriptLine
}

// NewTracker создаёт трекер с заданной длительностью чанка (секунды)
func NewTracker(chunkSeconds float64) *Tracker {
	return &Tracker{chunkSeconds: chunkSeconds}
}

// Start начинает новую сессию, сбрасывая накопленное
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedAt = time.Now()
	t.tracking = true
	t.youSeconds = 0
	t.totalSeconds = 0
	t.history = nil
	t.lines = nil
}

// AddChunk учитывает один речевой чанк.
// isYou - решение матчера для этого чанка.
func (t *Tracker) AddChunk(isYou bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalSeconds += t.chunkSeconds
	if isYou {
		t.youSeconds += t.chunkSeconds
	}
	t.history = append(t.history, t.percentageLocked())
}

// AddLine добавляет строку транскрипта
func (t *Tracker) AddLine(speaker, text string, confidence float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, TranscriptLine{
		Speaker:    speaker,
		Text:       text,
		Confidence: confidence,
		At:         time.Now(),
	})
}

// Percentage возвращает текущую долю времени пользователя (0-100)
func (t *Tracker) Percentage() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentageLocked()
}

func (t *Tracker) percentageLocked() float64 {
	if t.totalSeconds <= 0 {
		return 0
	}
	return t.youSeconds / t.totalSeconds * 100
}

// Snapshot возвращает копию текущего состояния для отображения
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	history := make([]float64, len(t.history))
	copy(history, t.history)
	lines := make([]TranscriptLine, len(t.lines))
	copy(lines, t.lines)

	return State{
		Tracking:     t.tracking,
		YouSeconds:   t.youSeconds,
		TotalSeconds: t.totalSeconds,
		Percentage:   t.percentageLocked(),
		History:      history,
		Lines:        lines,
	}
}

// Finish завершает сессию и возвращает итоговую запись
func (t *Tracker) Finish() *Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tracking = false
	return &Record{
		ID:           uuid.New().String(),
		StartedAt:    t.startedAt,
		EndedAt:      time.Now(),
		YouSeconds:   t.youSeconds,
		TotalSeconds: t.totalSeconds,
		Percentage:   t.percentageLocked(),
		History:      t.history,
		Lines:        t.lines,
	}
}
