// Package diarize реализует офлайн-разметку записи по спикерам
// (sherpa-onnx) и сводку "кто сколько говорил" с идентификацией
// пользователя по калибровочному эмбеддингу.
package diarize

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// Turn речевой ход одного спикера в записи
type Turn struct {
	Start   float64 // секунды от начала записи
	End     float64
	Speaker int // локальный ID спикера (0, 1, 2...)
}

// Duration длительность хода в секундах
func (t Turn) Duration() float64 {
	return t.End - t.Start
}

// Config конфигурация офлайн-диаризации
type Config struct {
	SegmentationModelPath string // модель сегментации (pyannote)
	EmbeddingModelPath    string // модель эмбеддингов для кластеризации
	NumThreads            int
	NumSpeakers           int     // число спикеров, -1 для автоопределения
	ClusteringThreshold   float32 // порог кластеризации спикеров
	MinDurationOn         float32 // минимальная длительность речи, сек
	MinDurationOff        float32 // минимальная длительность паузы, сек
	Provider              string  // cpu, coreml, cuda или auto
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig(segmentationPath, embeddingPath string) Config {
	return Config{
		SegmentationModelPath: segmentationPath,
		EmbeddingModelPath:    embeddingPath,
		NumThreads:            4,
		NumSpeakers:           -1,
		ClusteringThreshold:   0.5,
		MinDurationOn:         0.3,
		MinDurationOff:        0.5,
		Provider:              "auto",
	}
}

// detectProvider выбирает провайдер инференса для текущей платформы
func detectProvider() string {
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return "coreml"
	}
	return "cpu"
}

// Diarizer офлайн-диаризатор на базе sherpa-onnx
type Diarizer struct {
	sd *sherpa.OfflineSpeakerDiarization
	mu sync.Mutex
}

// NewDiarizer создаёт диаризатор. Конструирование дорогое - экземпляр
// переиспользуется для всех записей.
func NewDiarizer(cfg Config) (*Diarizer, error) {
	provider := cfg.Provider
	if provider == "" || provider == "auto" {
		provider = detectProvider()
	}

	sherpaConfig := &sherpa.OfflineSpeakerDiarizationConfig{
		Segmentation: sherpa.OfflineSpeakerSegmentationModelConfig{
			Pyannote: sherpa.OfflineSpeakerSegmentationPyannoteModelConfig{
				Model: cfg.SegmentationModelPath,
			},
			NumThreads: cfg.NumThreads,
			Provider:   provider,
		},
		Embedding: sherpa.SpeakerEmbeddingExtractorConfig{
			Model:      cfg.EmbeddingModelPath,
			NumThreads: cfg.NumThreads,
			Provider:   provider,
		},
		Clustering: sherpa.FastClusteringConfig{
			NumClusters: cfg.NumSpeakers,
			Threshold:   cfg.ClusteringThreshold,
		},
		MinDurationOn:  cfg.MinDurationOn,
		MinDurationOff: cfg.MinDurationOff,
	}

	sd := sherpa.NewOfflineSpeakerDiarization(sherpaConfig)
	if sd == nil && provider != "cpu" {
		log.Printf("[Diarize] %s provider failed, falling back to CPU", provider)
		sherpaConfig.Segmentation.Provider = "cpu"
		sherpaConfig.Embedding.Provider = "cpu"
		sd = sherpa.NewOfflineSpeakerDiarization(sherpaConfig)
	}
	if sd == nil {
		return nil, fmt.Errorf("diarize: failed to create sherpa-onnx diarizer")
	}

	return &Diarizer{sd: sd}, nil
}

// SampleRate возвращает ожидаемую частоту дискретизации входа
func (d *Diarizer) SampleRate() int {
	if d.sd != nil {
		return d.sd.SampleRate()
	}
	return 16000
}

// Diarize разбивает запись на речевые ходы с метками спикеров
func (d *Diarizer) Diarize(samples []float32) ([]Turn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sd == nil {
		return nil, fmt.Errorf("diarize: diarizer is closed")
	}
	if len(samples) == 0 {
		return nil, nil
	}

	segments := d.sd.Process(samples)
	turns := make([]Turn, len(segments))
	for i, seg := range segments {
		turns[i] = Turn{
			Start:   float64(seg.Start),
			End:     float64(seg.End),
			Speaker: seg.Speaker,
		}
	}

	log.Printf("[Diarize] Found %d turns", len(turns))
	return turns, nil
}

// Close освобождает ресурсы диаризатора
func (d *Diarizer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sd != nil {
		sherpa.DeleteOfflineSpeakerDiarization(d.sd)
		d.sd = nil
	}
}
