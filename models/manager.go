package models

import (
	"context"
	"log"
	"os"
	"path"
	"path/filepath"
)

// Manager отвечает за наличие моделей на диске: возвращает путь к уже
// скачанной модели или скачивает её из реестра.
type Manager struct {
	dir   string
	token string
}

// NewManager создаёт менеджер моделей.
// dir - директория для скачанных моделей, token - ключ доступа к
// хранилищу моделей (может быть пустым для открытых моделей).
func NewManager(dir, token string) *Manager {
	return &Manager{dir: dir, token: token}
}

// Path возвращает локальный путь модели (независимо от её наличия)
func (m *Manager) Path(info *Info) string {
	return filepath.Join(m.dir, info.ID+path.Ext(info.DownloadURL))
}

// IsDownloaded проверяет, скачана ли модель
func (m *Manager) IsDownloaded(info *Info) bool {
	st, err := os.Stat(m.Path(info))
	return err == nil && st.Size() > 0
}

// Ensure возвращает путь к модели, скачивая её при необходимости
func (m *Manager) Ensure(ctx context.Context, id string) (string, error) {
	info, err := Find(id)
	if err != nil {
		return "", err
	}

	dest := m.Path(info)
	if m.IsDownloaded(info) {
		return dest, nil
	}

	log.Printf("[Models] Downloading %s (%s)...", info.Name, info.Size)
	err = DownloadFile(ctx, info.DownloadURL, dest, m.token, info.SizeBytes, func(progress float64) {
		log.Printf("[Models] %s: %.0f%%", info.ID, progress)
	})
	if err != nil {
		return "", err
	}

	log.Printf("[Models] Downloaded %s -> %s", info.ID, dest)
	return dest, nil
}
