package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"talkmeter/audio"
	"talkmeter/dsp"
	"talkmeter/internal/api"
	"talkmeter/internal/config"
	"talkmeter/models"
	"talkmeter/session"
	"talkmeter/speaker"
	"talkmeter/transcribe"
	"talkmeter/voiceprint"
)

func main() {
	cfg := config.Load()

	capture, err := audio.NewCapture()
	if err != nil {
		log.Fatalf("Audio init failed: %v", err)
	}
	defer capture.Close()

	if cfg.Device != "" {
		if err := capture.SetDevice(cfg.Device); err != nil {
			log.Fatalf("Input device %q: %v", cfg.Device, err)
		}
	}

	store := voiceprint.NewStore(cfg.DataDir)
	engine := buildEngine(cfg, store)
	defer engine.Close()

	if !engine.HasProfile() {
		log.Fatal("No voice profile found. Run the enroll command first.")
	}

	sessMgr := session.NewManager(cfg.DataDir)
	tracker := session.NewTracker(cfg.ChunkSeconds)

	var server *api.Server
	if cfg.EnableAPI {
		server = api.NewServer(cfg.Port, sessMgr, capture)
		go func() {
			if err := server.Start(); err != nil {
				log.Printf("[API] Server stopped: %v", err)
			}
		}()
	}

	var transcriber *transcribe.Client
	if cfg.Transcribe {
		if cfg.OpenAIAPIKey == "" {
			log.Fatal("Transcription requested but OPENAI_API_KEY is not set")
		}
		transcriber = transcribe.NewClient(cfg.TranscribeURL, cfg.OpenAIAPIKey, cfg.TranscribeModel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker.Start()
	log.Printf("[Main] Tracking started (chunk %.1fs, Ctrl+C to stop)", cfg.ChunkSeconds)

	runLoop(ctx, cfg, capture, engine, tracker, transcriber, server)

	rec := tracker.Finish()
	if rec.TotalSeconds > 0 {
		if err := sessMgr.Save(rec); err != nil {
			log.Printf("[Main] Save session: %v", err)
		}
		log.Printf("[Main] You spoke %.0f%% of the conversation (%.0fs of %.0fs)",
			rec.Percentage, rec.YouSeconds, rec.TotalSeconds)
	} else {
		log.Printf("[Main] No speech recorded")
	}
}

// buildEngine собирает движок идентификации: GMM-профиль с диска плюс
// ленивый нейросетевой эмбеддер
func buildEngine(cfg *config.Config, store *voiceprint.Store) *speaker.Engine {
	speakerCfg := speaker.Config{
		ModelID:             cfg.EmbeddingModel,
		SimilarityThreshold: cfg.MatchThreshold,
	}
	modelMgr := models.NewManager(cfg.ModelsDir, cfg.HFToken)

	factory := func() (speaker.Embedder, error) {
		return speaker.LoadEmbedder(context.Background(), speakerCfg, modelMgr)
	}
	engine := speaker.NewEngine(speakerCfg, factory)
	engine.SetEmbeddingEnabled(cfg.EnableEmbedding)

	profile, err := store.LoadProfile()
	switch {
	case err == nil:
		engine.SetProfile(profile)
	case errors.Is(err, voiceprint.ErrNotFound):
	case errors.Is(err, voiceprint.ErrCorrupt):
		log.Printf("[Main] Voice profile is corrupt, ignoring it. Re-enroll to fix.")
	default:
		log.Printf("[Main] Load voice profile: %v", err)
	}

	embedding, err := store.LoadEmbedding()
	switch {
	case err == nil:
		engine.SetEnrollment(embedding)
	case errors.Is(err, voiceprint.ErrNotFound):
	case errors.Is(err, voiceprint.ErrCorrupt):
		log.Printf("[Main] Voice embedding is corrupt, ignoring it. Re-enroll to fix.")
	default:
		log.Printf("[Main] Load voice embedding: %v", err)
	}

	return engine
}

// runLoop основной цикл: чанк с микрофона -> гейт речи -> матчер -> трекер
func runLoop(
	ctx context.Context,
	cfg *config.Config,
	capture *audio.Capture,
	engine *speaker.Engine,
	tracker *session.Tracker,
	transcriber *transcribe.Client,
	server *api.Server,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		chunk, err := capture.Record(cfg.ChunkSeconds)
		if err != nil {
			log.Printf("[Main] Capture: %v", err)
			return
		}
		if len(chunk) == 0 {
			continue
		}

		// Тихие чанки не считаются временем разговора
		if dsp.RMS(chunk) < session.SpeechThreshold {
			if server != nil {
				server.BroadcastState(tracker.Snapshot())
			}
			continue
		}

		result := engine.Match(chunk, audio.SampleRate)
		tracker.AddChunk(result.IsMatch)

		who := session.SpeakerOther
		if result.IsMatch {
			who = session.SpeakerYou
		}
		log.Printf("[Main] Chunk: %s (conf %.2f, %s), you %.0f%%",
			who, result.Confidence, result.Method, tracker.Percentage())

		if transcriber != nil {
			go transcribeChunk(ctx, transcriber, tracker, chunk, who, result.Confidence, server)
		}

		if server != nil {
			server.BroadcastState(tracker.Snapshot())
		}
	}
}

func transcribeChunk(
	ctx context.Context,
	transcriber *transcribe.Client,
	tracker *session.Tracker,
	chunk []float32,
	who string,
	confidence float64,
	server *api.Server,
) {
	text, err := transcriber.Transcribe(ctx, chunk, audio.SampleRate)
	if err != nil {
		log.Printf("[Main] Transcribe: %v", err)
		return
	}
	if text == "" {
		return
	}
	tracker.AddLine(who, text, confidence)
	if server != nil {
		server.BroadcastState(tracker.Snapshot())
	}
}
