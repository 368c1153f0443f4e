package voiceprint

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"talkmeter/gmm"
)

func testProfile(t *testing.T) *VoiceProfile {
	t.Helper()
	model, err := gmm.New(
		[]float64{0.6, 0.4},
		[][]float64{{1, 2, 3}, {-1, -2, -3}},
		[][]float64{{0.5, 0.5, 0.5}, {1, 1, 1}},
	)
	if err != nil {
		t.Fatalf("Building test model: %v", err)
	}
	return &VoiceProfile{Mixture: model, ThresholdScore: -12.5}
}

func TestStore_ProfileRoundtrip(t *testing.T) {
	store := NewStore(t.TempDir())
	want := testProfile(t)

	if err := store.SaveProfile(want); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	got, err := store.LoadProfile()
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}

	if got.ThresholdScore != want.ThresholdScore {
		t.Errorf("Threshold %v, want %v", got.ThresholdScore, want.ThresholdScore)
	}
	if got.Mixture.NumComponents() != want.Mixture.NumComponents() {
		t.Fatalf("Components %d, want %d", got.Mixture.NumComponents(), want.Mixture.NumComponents())
	}
	for k := range want.Mixture.Weights {
		if got.Mixture.Weights[k] != want.Mixture.Weights[k] {
			t.Errorf("Weight %d: %v, want %v", k, got.Mixture.Weights[k], want.Mixture.Weights[k])
		}
		for d := range want.Mixture.Means[k] {
			if got.Mixture.Means[k][d] != want.Mixture.Means[k][d] {
				t.Errorf("Mean [%d][%d] differs after roundtrip", k, d)
			}
			if got.Mixture.Variances[k][d] != want.Mixture.Variances[k][d] {
				t.Errorf("Variance [%d][%d] differs after roundtrip", k, d)
			}
		}
	}

	// Оба профиля должны давать одинаковые оценки
	x := []float64{0.5, 1.5, 2.5}
	if a, b := want.Mixture.LogLikelihood(x), got.Mixture.LogLikelihood(x); a != b {
		t.Errorf("Loaded model scores differently: %v != %v", a, b)
	}
}

func TestStore_LoadProfile_NotFound(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.LoadProfile(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.LoadEmbedding(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for embedding, got %v", err)
	}
}

func TestStore_LoadProfile_Corrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	writeFile := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Writing fixture: %v", err)
		}
	}

	cases := []struct {
		name    string
		content string
	}{
		{"garbage", "not json at all"},
		{"future version", `{"version": 99, "weights": [1], "means": [[0]], "covariances": [[1]]}`},
		{"negative version", `{"version": -1, "weights": [1], "means": [[0]], "covariances": [[1]]}`},
		{"inconsistent arrays", `{"version": 1, "weights": [1, 1], "means": [[0]], "covariances": [[1]]}`},
		{"empty model", `{"version": 1}`},
	}
	for _, tc := range cases {
		writeFile(profileFileName, tc.content)
		if _, err := store.LoadProfile(); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: expected ErrCorrupt, got %v", tc.name, err)
		}
	}
}

func TestStore_LoadProfile_PreVersionedSchema(t *testing.T) {
	// Файлы без поля version читаются как version 0 и принимаются
	dir := t.TempDir()
	store := NewStore(dir)

	content := `{"weights": [1], "means": [[0, 0]], "covariances": [[1, 1]], "threshold_score": -8}`
	if err := os.WriteFile(filepath.Join(dir, profileFileName), []byte(content), 0644); err != nil {
		t.Fatalf("Writing fixture: %v", err)
	}

	p, err := store.LoadProfile()
	if err != nil {
		t.Fatalf("LoadProfile failed on pre-versioned file: %v", err)
	}
	if p.ThresholdScore != -8 {
		t.Errorf("Threshold %v, want -8", p.ThresholdScore)
	}
}

func TestStore_LoadProfile_MissingThreshold(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	content := `{"version": 1, "weights": [1], "means": [[0]], "covariances": [[1]]}`
	if err := os.WriteFile(filepath.Join(dir, profileFileName), []byte(content), 0644); err != nil {
		t.Fatalf("Writing fixture: %v", err)
	}

	p, err := store.LoadProfile()
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if p.ThresholdScore != defaultThresholdScore {
		t.Errorf("Missing threshold_score: got %v, want default %v", p.ThresholdScore, defaultThresholdScore)
	}
}

func TestStore_SavedProfileSchema(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if err := store.SaveProfile(testProfile(t)); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	data, err := os.ReadFile(store.ProfilePath())
	if err != nil {
		t.Fatalf("Reading saved file: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Saved profile is not valid JSON: %v", err)
	}
	for _, field := range []string{"version", "weights", "means", "covariances", "precisions_cholesky", "threshold_score"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("Saved profile missing field %q", field)
		}
	}

	// Производное поле согласовано с ковариациями
	var rec profileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("Unmarshal record: %v", err)
	}
	for c := range rec.Covariances {
		for d := range rec.Covariances[c] {
			want := 1.0 / math.Sqrt(rec.Covariances[c][d])
			if math.Abs(rec.PrecisionsCholesky[c][d]-want) > 1e-12 {
				t.Errorf("precisions_cholesky[%d][%d] = %v, want %v", c, d, rec.PrecisionsCholesky[c][d], want)
			}
		}
	}
}

func TestStore_EmbeddingRoundtrip(t *testing.T) {
	store := NewStore(t.TempDir())
	want := []float32{0.1, -0.2, 0.3, 0.9}

	if err := store.SaveEmbedding(want); err != nil {
		t.Fatalf("SaveEmbedding failed: %v", err)
	}
	got, err := store.LoadEmbedding()
	if err != nil {
		t.Fatalf("LoadEmbedding failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Embedding[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if err := store.SaveEmbedding(nil); err == nil {
		t.Error("Expected error for empty embedding")
	}
}

func TestStore_LoadEmbedding_Corrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	cases := []struct {
		name    string
		content string
	}{
		{"garbage", "{{{"},
		{"future version", `{"version": 2, "embedding": [1]}`},
		{"empty array", `{"version": 1, "embedding": []}`},
	}
	for _, tc := range cases {
		if err := os.WriteFile(filepath.Join(dir, embeddingFileName), []byte(tc.content), 0644); err != nil {
			t.Fatalf("Writing fixture: %v", err)
		}
		if _, err := store.LoadEmbedding(); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: expected ErrCorrupt, got %v", tc.name, err)
		}
	}
}

func TestStore_Reset(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.SaveProfile(testProfile(t)); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	if err := store.SaveEmbedding([]float32{1, 2}); err != nil {
		t.Fatalf("SaveEmbedding failed: %v", err)
	}

	if err := store.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := store.LoadProfile(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Profile should be gone after reset, got %v", err)
	}
	if _, err := store.LoadEmbedding(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Embedding should be gone after reset, got %v", err)
	}

	// Повторный reset на пустой директории не ошибка
	if err := store.Reset(); err != nil {
		t.Errorf("Second reset failed: %v", err)
	}
}
