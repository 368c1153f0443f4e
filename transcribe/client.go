// Package transcribe содержит клиент OpenAI-совместимого API
// распознавания речи (/v1/audio/transcriptions). Транскрипция
// опциональна: трекер сессии работает и без неё.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"talkmeter/audio"
)

// DefaultBaseURL адрес API по умолчанию
const DefaultBaseURL = "https://api.openai.com/v1"

// DefaultModel модель распознавания по умолчанию
const DefaultModel = "whisper-1"

// Client клиент API транскрипции
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewClient создаёт клиент. Пустые baseURL и model заменяются
// значениями по умолчанию.
func NewClient(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Transcribe отправляет аудио-чанк на распознавание и возвращает текст
func (c *Client) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	// API принимает файлы, поэтому чанк упаковывается во временный WAV
	tmp, err := os.CreateTemp("", "chunk-*.wav")
	if err != nil {
		return "", fmt.Errorf("transcribe: temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := audio.WriteWAV(tmpPath, samples, sampleRate); err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(tmpPath))
	if err != nil {
		return "", fmt.Errorf("transcribe: multipart: %w", err)
	}
	wavData, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", fmt.Errorf("transcribe: read temp wav: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return "", fmt.Errorf("transcribe: multipart: %w", err)
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("transcribe: multipart: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("transcribe: multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("transcribe: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcribe: API status %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("transcribe: decode response: %w", err)
	}
	return result.Text, nil
}

// TestAPIKey проверяет валидность ключа запросом списка моделей
func (c *Client) TestAPIKey(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("transcribe: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("transcribe: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("transcribe: API key rejected")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transcribe: API status %d", resp.StatusCode)
	}
	return nil
}
