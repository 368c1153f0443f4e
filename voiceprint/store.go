package voiceprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"

	"talkmeter/gmm"
)

// Имена файлов профиля в директории данных
const (
	profileFileName   = "voice_profile.json"
	embeddingFileName = "speaker_embedding.json"
)

var (
	// ErrNotFound файл профиля/эмбеддинга отсутствует - подсистема
	// не инициализирована, нужна калибровка
	ErrNotFound = errors.New("voiceprint: not found")

	// ErrCorrupt файл есть, но схема несовместима или данные повреждены.
	// Вызывающий должен удалить файл и запросить перекалибровку.
	ErrCorrupt = errors.New("voiceprint: corrupt record")
)

// profileRecord сериализованная форма статистического профиля
type profileRecord struct {
	Version            int         `json:"version"`
	Weights            []float64   `json:"weights"`
	Means              [][]float64 `json:"means"`
	Covariances        [][]float64 `json:"covariances"`
	PrecisionsCholesky [][]float64 `json:"precisions_cholesky"`
	ThresholdScore     *float64    `json:"threshold_score"`
}

// embeddingRecord сериализованная форма нейросетевого эмбеддинга
type embeddingRecord struct {
	Version   int       `json:"version"`
	Embedding []float32 `json:"embedding"`
}

// Store хранит профиль и эмбеддинг как два независимых JSON-файла.
// Отсутствие любого из файлов означает, что соответствующая подсистема
// не инициализирована; повреждённый файл - это ErrCorrupt, не крэш.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore создаёт хранилище в директории данных приложения
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// ProfilePath возвращает путь к файлу статистического профиля
func (s *Store) ProfilePath() string {
	return filepath.Join(s.dir, profileFileName)
}

// EmbeddingPath возвращает путь к файлу эмбеддинга
func (s *Store) EmbeddingPath() string {
	return filepath.Join(s.dir, embeddingFileName)
}

// SaveProfile атомарно записывает профиль на диск
func (s *Store) SaveProfile(p *VoiceProfile) error {
	if p == nil || p.Mixture == nil {
		return fmt.Errorf("voiceprint: nil profile")
	}

	m := p.Mixture
	rec := profileRecord{
		Version:            CurrentProfileVersion,
		Weights:            m.Weights,
		Means:              m.Means,
		Covariances:        m.Variances,
		PrecisionsCholesky: precisionsCholesky(m.Variances),
		ThresholdScore:     &p.ThresholdScore,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.ProfilePath(), rec)
}

// LoadProfile загружает профиль с диска.
// Возвращает ErrNotFound если файла нет, ErrCorrupt если схема
// несовместима или массивы несогласованы.
func (s *Store) LoadProfile() (*VoiceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.ProfilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("voiceprint: read profile: %w", err)
	}

	var rec profileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: unparsable profile: %v", ErrCorrupt, err)
	}
	if rec.Version > CurrentProfileVersion || rec.Version < 0 {
		return nil, fmt.Errorf("%w: profile version %d (supported <= %d)",
			ErrCorrupt, rec.Version, CurrentProfileVersion)
	}
	// version 0 - файл, записанный до введения поля version,
	// схема полей совпадает с v1

	model, err := gmm.New(rec.Weights, rec.Means, rec.Covariances)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(rec.PrecisionsCholesky) != 0 && len(rec.PrecisionsCholesky) != model.NumComponents() {
		return nil, fmt.Errorf("%w: precisions_cholesky length %d, expected %d",
			ErrCorrupt, len(rec.PrecisionsCholesky), model.NumComponents())
	}

	threshold := defaultThresholdScore
	if rec.ThresholdScore != nil {
		threshold = *rec.ThresholdScore
	} else {
		log.Printf("[VoicePrint] Profile missing threshold_score, defaulting to %.1f", threshold)
	}

	return &VoiceProfile{Mixture: model, ThresholdScore: threshold}, nil
}

// SaveEmbedding атомарно записывает эмбеддинг на диск
func (s *Store) SaveEmbedding(embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("voiceprint: empty embedding")
	}

	rec := embeddingRecord{
		Version:   CurrentEmbeddingVersion,
		Embedding: embedding,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.EmbeddingPath(), rec)
}

// LoadEmbedding загружает эмбеддинг с диска
func (s *Store) LoadEmbedding() ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.EmbeddingPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("voiceprint: read embedding: %w", err)
	}

	var rec embeddingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: unparsable embedding: %v", ErrCorrupt, err)
	}
	if rec.Version > CurrentEmbeddingVersion || rec.Version < 0 {
		return nil, fmt.Errorf("%w: embedding version %d (supported <= %d)",
			ErrCorrupt, rec.Version, CurrentEmbeddingVersion)
	}
	if len(rec.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding array", ErrCorrupt)
	}

	return rec.Embedding, nil
}

// ResetProfile удаляет файл статистического профиля
func (s *Store) ResetProfile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(s.ProfilePath())
}

// ResetEmbedding удаляет файл эмбеддинга
func (s *Store) ResetEmbedding() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(s.EmbeddingPath())
}

// Reset удаляет оба файла профиля
func (s *Store) Reset() error {
	if err := s.ResetProfile(); err != nil {
		return err
	}
	return s.ResetEmbedding()
}

// precisionsCholesky вычисляет 1/sqrt(var) для диагональной ковариации
// (производное поле схемы, пересчитывается при загрузке)
func precisionsCholesky(variances [][]float64) [][]float64 {
	out := make([][]float64, len(variances))
	for c, row := range variances {
		out[c] = make([]float64, len(row))
		for d, v := range row {
			if v < 1e-10 {
				v = 1e-10
			}
			out[c][d] = 1.0 / math.Sqrt(v)
		}
	}
	return out
}

// writeAtomic пишет JSON через временный файл с переименованием
func writeAtomic(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("voiceprint: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("voiceprint: create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("voiceprint: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // cleanup
		return fmt.Errorf("voiceprint: rename temp file: %w", err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
