// Оффлайн-анализ записи разговора: диаризация WAV-файла, сопоставление
// спикеров с калибровочным эмбеддингом и отчёт "кто сколько говорил".
//
// Запуск: go run ./cmd/offline -wav meeting.wav

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"talkmeter/audio"
	"talkmeter/diarize"
	"talkmeter/models"
	"talkmeter/speaker"
	"talkmeter/voiceprint"
)

func main() {
	wavPath := flag.String("wav", "", "Recording to analyze (required)")
	dataDir := flag.String("data", "data/sessions", "Directory for session data")
	modelsDir := flag.String("models", "data/models", "Directory for downloaded models")
	embeddingModel := flag.String("embedding-model", models.DefaultEmbeddingModel, "Speaker embedding model ID")
	minDuration := flag.Float64("min-duration", 1.0, "Minimum turn duration to score, seconds")
	numSpeakers := flag.Int("speakers", -1, "Number of speakers if known (-1 for auto)")
	flag.Parse()

	if *wavPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := voiceprint.NewStore(*dataDir)
	enrolled, err := store.LoadEmbedding()
	if err != nil {
		log.Fatalf("No voice embedding found (%v). Run the enroll command first.", err)
	}

	samples, sampleRate, err := audio.ReadWAV(*wavPath)
	if err != nil {
		log.Fatalf("Read recording: %v", err)
	}
	log.Printf("[Offline] Loaded %.1fs at %d Hz", float64(len(samples))/float64(sampleRate), sampleRate)

	mgr := models.NewManager(*modelsDir, os.Getenv("HUGGING_FACE_API_KEY"))
	segPath, err := mgr.Ensure(ctx, "pyannote-segmentation")
	if err != nil {
		log.Fatalf("Segmentation model: %v", err)
	}
	embInfo, err := models.Find(*embeddingModel)
	if err != nil {
		log.Fatalf("Embedding model: %v", err)
	}
	embPath, err := mgr.Ensure(ctx, embInfo.ID)
	if err != nil {
		log.Fatalf("Embedding model: %v", err)
	}

	cfg := diarize.DefaultConfig(segPath, embPath)
	cfg.NumSpeakers = *numSpeakers
	diarizer, err := diarize.NewDiarizer(cfg)
	if err != nil {
		log.Fatalf("Diarization init: %v", err)
	}
	defer diarizer.Close()

	if sampleRate != diarizer.SampleRate() {
		samples = audio.Resample(samples, sampleRate, diarizer.SampleRate())
		sampleRate = diarizer.SampleRate()
	}

	turns, err := diarizer.Diarize(samples)
	if err != nil {
		log.Fatalf("Diarization: %v", err)
	}

	emb, err := speaker.NewOnnxEmbedder(embPath)
	if err != nil {
		log.Fatalf("Embedder init: %v", err)
	}
	defer emb.Close()

	summary, err := diarize.Summarize(turns, samples, sampleRate, emb, enrolled, *minDuration)
	if err != nil {
		log.Fatalf("Summary: %v", err)
	}

	printReport(summary)
}

func printReport(s *diarize.Summary) {
	fmt.Println()
	fmt.Println("Speaker  Time      Turns  Similarity")
	for _, spk := range s.Speakers {
		marker := "  "
		if spk.Speaker == s.YouSpeaker {
			marker = "* "
		}
		fmt.Printf("%s#%-5d  %6.1fs  %5d  %10.3f\n",
			marker, spk.Speaker, spk.Seconds, spk.Turns, spk.AvgSimilarity)
	}
	fmt.Println()
	fmt.Printf("You (speaker #%d) spoke %.1fs of %.1fs: %.0f%%\n",
		s.YouSpeaker, s.YouSeconds, s.TotalSeconds, s.YouPercent)
}
