package models

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFind(t *testing.T) {
	info, err := Find(DefaultEmbeddingModel)
	if err != nil {
		t.Fatalf("Find default model: %v", err)
	}
	if info.Kind != KindEmbedding {
		t.Errorf("Default model kind %q, want %q", info.Kind, KindEmbedding)
	}
	if info.EmbeddingDim == 0 {
		t.Error("Embedding model has no dimension")
	}

	if _, err := Find("no-such-model"); err == nil {
		t.Error("Expected error for unknown model ID")
	}
}

func TestEmbeddingModels(t *testing.T) {
	list := EmbeddingModels()
	if len(list) == 0 {
		t.Fatal("Registry has no embedding models")
	}
	for _, m := range list {
		if m.Kind != KindEmbedding {
			t.Errorf("Model %s has kind %q", m.ID, m.Kind)
		}
	}
}

func TestDownloadFile_Success(t *testing.T) {
	payload := []byte("onnx model bytes")
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.onnx")
	err := DownloadFile(context.Background(), srv.URL, dest, "secret-token", int64(len(payload)), nil)
	if err != nil {
		t.Fatalf("DownloadFile failed: %v", err)
	}

	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization header %q, want bearer token", gotAuth)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("Reading downloaded file: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("Downloaded content differs")
	}
	// Временный файл убран
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file left behind")
	}
}

func TestDownloadFile_NoTokenNoHeader(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.onnx")
	if err := DownloadFile(context.Background(), srv.URL, dest, "", 0, nil); err != nil {
		t.Fatalf("DownloadFile failed: %v", err)
	}
	if sawAuth {
		t.Error("Authorization header sent without a token")
	}
}

func TestDownloadFile_StatusErrors(t *testing.T) {
	cases := []struct {
		status  int
		wantErr error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrGated},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		dest := filepath.Join(t.TempDir(), "model.onnx")
		err := DownloadFile(context.Background(), srv.URL, dest, "tok", 0, nil)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("Status %d: expected %v, got %v", tc.status, tc.wantErr, err)
		}
		if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
			t.Errorf("Status %d: destination file should not exist", tc.status)
		}
		srv.Close()
	}

	// Прочие статусы - обычная ошибка без сентинелов
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := DownloadFile(context.Background(), srv.URL, filepath.Join(t.TempDir(), "m.onnx"), "", 0, nil)
	if err == nil {
		t.Fatal("Expected error for 500")
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrGated) {
		t.Errorf("500 mapped to a credential sentinel: %v", err)
	}
}

func TestManager_EnsureUsesCachedFile(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("model"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	mgr := NewManager(dir, "")

	// Подменяем URL модели на тестовый сервер
	orig := Registry[0].DownloadURL
	Registry[0].DownloadURL = srv.URL + "/model.onnx"
	defer func() { Registry[0].DownloadURL = orig }()

	id := Registry[0].ID
	path1, err := mgr.Ensure(context.Background(), id)
	if err != nil {
		t.Fatalf("First Ensure failed: %v", err)
	}
	path2, err := mgr.Ensure(context.Background(), id)
	if err != nil {
		t.Fatalf("Second Ensure failed: %v", err)
	}

	if path1 != path2 {
		t.Errorf("Paths differ: %s vs %s", path1, path2)
	}
	if requests != 1 {
		t.Errorf("Expected 1 download, got %d requests", requests)
	}
}

func TestManager_EnsureUnknownModel(t *testing.T) {
	mgr := NewManager(t.TempDir(), "")
	if _, err := mgr.Ensure(context.Background(), "bogus"); err == nil {
		t.Error("Expected error for unknown model")
	}
}
