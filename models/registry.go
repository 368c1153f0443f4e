// Package models предоставляет реестр и загрузку предобученных ONNX моделей
// распознавания спикеров
package models

import "fmt"

// Kind назначение модели
type Kind string

const (
	// KindEmbedding модель извлечения эмбеддинга спикера
	KindEmbedding Kind = "embedding"
	// KindSegmentation модель сегментации речи для офлайн-диаризации
	KindSegmentation Kind = "segmentation"
)

// Info описание модели в реестре
type Info struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Kind         Kind   `json:"kind"`
	Size         string `json:"size"`
	SizeBytes    int64  `json:"sizeBytes"`
	Description  string `json:"description"`
	DownloadURL  string `json:"downloadUrl"`
	EmbeddingDim int    `json:"embeddingDim,omitempty"` // размерность эмбеддинга
	Gated        bool   `json:"gated,omitempty"`        // требует принятия лицензии
}

// DefaultEmbeddingModel модель эмбеддингов по умолчанию
const DefaultEmbeddingModel = "wespeaker-resnet34"

// Registry реестр доступных моделей
var Registry = []Info{
	{
		ID:           "wespeaker-resnet34",
		Name:         "WeSpeaker ResNet34",
		Kind:         KindEmbedding,
		Size:         "26 MB",
		SizeBytes:    26_600_000,
		Description:  "Англоязычная VoxCeleb модель, 256-мерные эмбеддинги",
		DownloadURL:  "https://github.com/k2-fsa/sherpa-onnx/releases/download/speaker-recongition-models/wespeaker_en_voxceleb_resnet34.onnx",
		EmbeddingDim: 256,
	},
	{
		ID:           "3dspeaker-eres2net",
		Name:         "3D-Speaker ERes2Net",
		Kind:         KindEmbedding,
		Size:         "38 MB",
		SizeBytes:    38_000_000,
		Description:  "Мультиязычная модель 3D-Speaker, 512-мерные эмбеддинги",
		DownloadURL:  "https://github.com/k2-fsa/sherpa-onnx/releases/download/speaker-recongition-models/3dspeaker_speech_eres2net_base_sv_zh-cn_3dspeaker_16k.onnx",
		EmbeddingDim: 512,
	},
	{
		ID:          "pyannote-segmentation",
		Name:        "Pyannote Segmentation 3.0",
		Kind:        KindSegmentation,
		Size:        "6 MB",
		SizeBytes:   6_000_000,
		Description: "Сегментация речи для офлайн-диаризации",
		DownloadURL: "https://huggingface.co/csukuangfj/sherpa-onnx-pyannote-segmentation-3-0/resolve/main/model.onnx",
		Gated:       true,
	},
}

// Find возвращает описание модели по ID
func Find(id string) (*Info, error) {
	for i := range Registry {
		if Registry[i].ID == id {
			return &Registry[i], nil
		}
	}
	return nil, fmt.Errorf("models: unknown model %q", id)
}

// EmbeddingModels возвращает все модели эмбеддингов из реестра
func EmbeddingModels() []Info {
	var out []Info
	for _, m := range Registry {
		if m.Kind == KindEmbedding {
			out = append(out, m)
		}
	}
	return out
}
