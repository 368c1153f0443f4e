// Калибровка голосового профиля: записывает эталон голоса с микрофона
// (или берёт его из WAV) и сохраняет GMM-профиль и нейросетевой
// эмбеддинг в директорию данных.
//
// Запуск: go run ./cmd/enroll
//         go run ./cmd/enroll -wav reference.wav

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"talkmeter/audio"
	"talkmeter/models"
	"talkmeter/session"
	"talkmeter/speaker"
	"talkmeter/voiceprint"
)

const defaultRecordSeconds = 10.0

func main() {
	dataDir := flag.String("data", "data/sessions", "Directory for session data")
	modelsDir := flag.String("models", "data/models", "Directory for downloaded models")
	wavPath := flag.String("wav", "", "Enroll from a WAV file instead of the microphone")
	device := flag.String("device", "", "Input device ID (empty for default)")
	seconds := flag.Float64("seconds", defaultRecordSeconds, "Recording duration")
	modelID := flag.String("embedding-model", models.DefaultEmbeddingModel, "Speaker embedding model ID")
	skipEmbedding := flag.Bool("skip-embedding", false, "Only build the GMM profile")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	samples, sampleRate, err := obtainAudio(*wavPath, *device, *seconds)
	if err != nil {
		log.Fatalf("Audio: %v", err)
	}
	log.Printf("[Enroll] Got %.1fs of audio at %d Hz", float64(len(samples))/float64(sampleRate), sampleRate)

	if sampleRate != audio.SampleRate {
		samples = audio.Resample(samples, sampleRate, audio.SampleRate)
		sampleRate = audio.SampleRate
	}

	// Ведущая тишина (пауза перед началом речи) портит статистику профиля
	if offset := session.DetectSpeechStart(samples, sampleRate); offset > 0 {
		skip := int(offset) * sampleRate / 1000
		if skip < len(samples) {
			log.Printf("[Enroll] Trimming %d ms of leading silence", offset)
			samples = samples[skip:]
		}
	}

	store := voiceprint.NewStore(*dataDir)

	// Профиль строится во временные структуры и заменяет старый только
	// после успешного обучения, неудавшаяся калибровка не трогает диск
	profile, err := voiceprint.CreateProfile(samples, sampleRate)
	if err != nil {
		log.Fatalf("Profile training failed: %v", err)
	}
	if err := store.SaveProfile(profile); err != nil {
		log.Fatalf("Save profile: %v", err)
	}
	log.Printf("[Enroll] GMM profile saved (%d components, threshold %.1f)",
		profile.Mixture.NumComponents(), profile.ThresholdScore)

	if *skipEmbedding {
		return
	}

	mgr := models.NewManager(*modelsDir, os.Getenv("HUGGING_FACE_API_KEY"))
	emb, err := speaker.LoadEmbedder(ctx, speaker.Config{ModelID: *modelID}, mgr)
	if err != nil {
		var cfgErr *speaker.ConfigError
		if errors.As(err, &cfgErr) {
			log.Printf("[Enroll] Embedding unavailable: %v", cfgErr)
			log.Printf("[Enroll] GMM profile is enough to start, embeddings improve accuracy")
			return
		}
		log.Fatalf("Load embedder: %v", err)
	}
	if closer, ok := emb.(interface{ Close() }); ok {
		defer closer.Close()
	}

	embedding, err := speaker.Enroll(emb, samples, sampleRate, speaker.DefaultChunkDuration)
	if err != nil {
		log.Fatalf("Embedding enrollment failed: %v", err)
	}
	if err := store.SaveEmbedding(embedding); err != nil {
		log.Fatalf("Save embedding: %v", err)
	}
	log.Printf("[Enroll] Voice embedding saved (dim %d)", len(embedding))
}

func obtainAudio(wavPath, device string, seconds float64) ([]float32, int, error) {
	if wavPath != "" {
		return audio.ReadWAV(wavPath)
	}

	capture, err := audio.NewCapture()
	if err != nil {
		return nil, 0, err
	}
	defer capture.Close()

	if device != "" {
		if err := capture.SetDevice(device); err != nil {
			return nil, 0, err
		}
	}

	log.Printf("[Enroll] Speak naturally for %.0f seconds...", seconds)
	samples, err := capture.Record(seconds)
	if err != nil {
		return nil, 0, err
	}
	return samples, audio.SampleRate, nil
}
