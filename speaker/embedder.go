// Package speaker реализует нейросетевой матчер голоса: извлечение
// эмбеддингов предобученной моделью, калибровку усреднением чанков и
// политику выбора между нейросетевым и статистическим путями.
package speaker

import (
	"context"
	"errors"
	"fmt"

	"talkmeter/models"
)

// Границы пользовательской настройки порога сходства
const (
	// DefaultSimilarityThreshold порог косинусного сходства по умолчанию.
	// Исторически использовалось и 0.45 - это настраиваемый параметр,
	// а не константа корректности.
	DefaultSimilarityThreshold = 0.65

	MinSimilarityThreshold = 0.4
	MaxSimilarityThreshold = 0.9
)

// Config конфигурация нейросетевого матчера
type Config struct {
	ModelID             string  // идентификатор модели в реестре
	SimilarityThreshold float64 // порог косинусного сходства
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		ModelID:             models.DefaultEmbeddingModel,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

// ClampThreshold приводит порог к допустимому диапазону [0.4, 0.9]
func ClampThreshold(t float64) float64 {
	if t < MinSimilarityThreshold {
		return MinSimilarityThreshold
	}
	if t > MaxSimilarityThreshold {
		return MaxSimilarityThreshold
	}
	return t
}

// Embedder извлекает эмбеддинг спикера из аудио.
// Реализация детерминирована при фиксированных весах модели.
type Embedder interface {
	// EmbeddingFromAudio выполняет один прямой проход модели по всему
	// буферу. samples - float32 моно, sampleRate Гц.
	EmbeddingFromAudio(samples []float32, sampleRate int) ([]float32, error)
}

// ConfigError фатальная для нейросетевого пути ошибка конфигурации.
// Статистический путь при этом остаётся рабочим.
type ConfigError struct {
	Reason string // текст с инструкцией по исправлению
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("speaker: %s: %v", e.Reason, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadEmbedder разрешает модель по идентификатору (скачивая при
// необходимости) и создаёт ONNX-эмбеддер. Ошибки авторизации и закрытого
// доступа различаются и несут инструкцию пользователю.
func LoadEmbedder(ctx context.Context, cfg Config, mgr *models.Manager) (Embedder, error) {
	info, err := models.Find(cfg.ModelID)
	if err != nil {
		return nil, &ConfigError{Reason: "unknown embedding model", Err: err}
	}
	if info.Kind != models.KindEmbedding {
		return nil, &ConfigError{
			Reason: fmt.Sprintf("model %q is not an embedding model", cfg.ModelID),
			Err:    fmt.Errorf("kind %s", info.Kind),
		}
	}

	modelPath, err := mgr.Ensure(ctx, cfg.ModelID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			return nil, &ConfigError{
				Reason: "model hub returned 401 Unauthorized; verify the access token is valid and has read scope",
				Err:    err,
			}
		case errors.Is(err, models.ErrGated):
			return nil, &ConfigError{
				Reason: "model hub returned 403 Forbidden; accept the model license, then create a fresh read token",
				Err:    err,
			}
		default:
			return nil, &ConfigError{Reason: "failed to fetch embedding model", Err: err}
		}
	}

	embedder, err := NewOnnxEmbedder(modelPath)
	if err != nil {
		return nil, &ConfigError{Reason: "failed to load embedding model", Err: err}
	}
	return embedder, nil
}
