package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrUnauthorized сервер вернул 401: токен отсутствует или недействителен
	ErrUnauthorized = errors.New("models: unauthorized (401)")

	// ErrGated сервер вернул 403: лицензия модели не принята или токен
	// не имеет нужных прав
	ErrGated = errors.New("models: access forbidden (403)")
)

// ProgressFunc функция для отчёта о прогрессе загрузки (0-100)
type ProgressFunc func(progress float64)

// DownloadFile скачивает файл модели по URL с авторизацией и прогрессом.
// token добавляется как Bearer-заголовок если не пуст.
// 401 и 403 различаются, чтобы вызывающий мог показать осмысленную
// инструкцию (обновить токен / принять лицензию).
func DownloadFile(ctx context.Context, url, destPath, token string, expectedSize int64, onProgress ProgressFunc) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("models: create directory: %w", err)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("models: create file: %w", err)
	}
	defer out.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("models: create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{
		Timeout: 0, // большие файлы, без таймаута
	}
	resp, err := client.Do(req)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("models: download: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		os.Remove(tmpPath)
		return fmt.Errorf("%w: check that the access token is valid and has read scope", ErrUnauthorized)
	case http.StatusForbidden:
		os.Remove(tmpPath)
		return fmt.Errorf("%w: accept the model license on its page, then create a fresh read token", ErrGated)
	default:
		os.Remove(tmpPath)
		return fmt.Errorf("models: bad status: %s", resp.Status)
	}

	totalSize := resp.ContentLength
	if totalSize <= 0 && expectedSize > 0 {
		totalSize = expectedSize
	}

	reader := &progressReader{
		reader:     resp.Body,
		totalSize:  totalSize,
		onProgress: onProgress,
	}

	if _, err := io.Copy(out, reader); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("models: write file: %w", err)
	}

	// Закрываем перед переименованием
	out.Close()

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("models: rename file: %w", err)
	}

	return nil
}

// progressReader обёртка io.Reader с отслеживанием прогресса
type progressReader struct {
	reader       io.Reader
	totalSize    int64
	downloaded   int64
	onProgress   ProgressFunc
	lastReport   time.Time
	reportPeriod time.Duration
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)

		now := time.Now()
		if pr.reportPeriod == 0 {
			pr.reportPeriod = 500 * time.Millisecond
		}

		if pr.onProgress != nil && (now.Sub(pr.lastReport) >= pr.reportPeriod || err == io.EOF) {
			pr.lastReport = now
			if pr.totalSize > 0 {
				pr.onProgress(float64(pr.downloaded) / float64(pr.totalSize) * 100)
			}
		}
	}
	return n, err
}
