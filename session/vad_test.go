package session

import (
	"math"
	"testing"
)

func tone(freq float64, n int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/16000))
	}
	return out
}

func TestDetectSpeechStart_Silence(t *testing.T) {
	if got := DetectSpeechStart(make([]float32, 16000), 16000); got != 0 {
		t.Errorf("Silence: got %d, want 0", got)
	}
	if got := DetectSpeechStart(nil, 16000); got != 0 {
		t.Errorf("Empty input: got %d, want 0", got)
	}
}

func TestDetectSpeechStart_ImmediateSpeech(t *testing.T) {
	if got := DetectSpeechStart(tone(200, 16000, 0.3), 16000); got != 0 {
		t.Errorf("Speech from sample 0: got %d ms, want 0", got)
	}
}

func TestDetectSpeechStart_DelayedSpeech(t *testing.T) {
	// 500 мс тишины, затем речь
	samples := make([]float32, 16000)
	copy(samples[8000:], tone(200, 8000, 0.3))

	got := DetectSpeechStart(samples, 16000)
	if got < 450 || got > 550 {
		t.Errorf("Speech at 500ms detected at %d ms", got)
	}
}

func TestDetectSpeechStart_IgnoresShortBurst(t *testing.T) {
	// Одно громкое окно (50 мс) короче порога подтверждения
	samples := make([]float32, 16000)
	copy(samples[:800], tone(200, 800, 0.5))

	if got := DetectSpeechStart(samples, 16000); got != 0 {
		t.Errorf("Single-window burst confirmed as speech at %d ms", got)
	}
}
