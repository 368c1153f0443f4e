package config

import (
	"flag"
	"os"
	"path/filepath"

	"talkmeter/models"
	"talkmeter/speaker"
)

type Config struct {
	DataDir         string
	ModelsDir       string
	Port            string
	Device          string
	EmbeddingModel  string
	MatchThreshold  float64
	ChunkSeconds    float64
	EnableEmbedding bool
	EnableAPI       bool
	Transcribe      bool
	TranscribeURL   string
	TranscribeModel string

	// Токены читаются из окружения, не из флагов
	HFToken      string
	OpenAIAPIKey string
}

func Load() *Config {
	dataDir := flag.String("data", "data/sessions", "Directory for session data")
	modelsDir := flag.String("models", "", "Directory for downloaded models (default: dataDir/../models)")
	port := flag.String("port", "8080", "Status server port")
	device := flag.String("device", "", "Input device ID (empty for default)")
	embeddingModel := flag.String("embedding-model", models.DefaultEmbeddingModel, "Speaker embedding model ID")
	threshold := flag.Float64("threshold", speaker.DefaultSimilarityThreshold, "Embedding similarity threshold")
	chunk := flag.Float64("chunk", 2.0, "Audio chunk duration in seconds")
	enableEmbedding := flag.Bool("embedding", true, "Use neural speaker embeddings when available")
	enableAPI := flag.Bool("api", true, "Serve live session status over WebSocket")
	transcribe := flag.Bool("transcribe", false, "Transcribe chunks via speech API")
	transcribeURL := flag.String("transcribe-url", "", "Transcription API base URL (default: OpenAI)")
	transcribeModel := flag.String("transcribe-model", "", "Transcription model name")
	flag.Parse()

	finalModelsDir := *modelsDir
	if finalModelsDir == "" {
		finalModelsDir = filepath.Join(filepath.Dir(*dataDir), "models")
	}

	return &Config{
		DataDir:         *dataDir,
		ModelsDir:       finalModelsDir,
		Port:            *port,
		Device:          *device,
		EmbeddingModel:  *embeddingModel,
		MatchThreshold:  speaker.ClampThreshold(*threshold),
		ChunkSeconds:    *chunk,
		EnableEmbedding: *enableEmbedding,
		EnableAPI:       *enableAPI,
		Transcribe:      *transcribe,
		TranscribeURL:   *transcribeURL,
		TranscribeModel: *transcribeModel,
		HFToken:         os.Getenv("HUGGING_FACE_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
	}
}
