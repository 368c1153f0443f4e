package session

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Manager сохраняет итоги сессий в директории данных
type Manager struct {
	dir string
	mu  sync.Mutex
}

// NewManager создаёт менеджер сессий
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Save атомарно сохраняет запись сессии
func (m *Manager) Save(rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("session: invalid record")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("session: create directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}

	path := m.path(rec.ID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("session: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("session: rename temp file: %w", err)
	}

	log.Printf("[Session] Saved %s (%.1fs total, %.0f%% you)", rec.ID[:8], rec.TotalSeconds, rec.Percentage)
	return nil
}

// Load загружает запись сессии по ID
func (m *Manager) Load(id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path(id))
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("session: parse %s: %w", id, err)
	}
	return &rec, nil
}

// List возвращает ID всех сохранённых сессий (новые первыми по имени файла)
func (m *Manager) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: list: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+".json")
}
