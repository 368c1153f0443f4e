package api

import (
	"time"

	"talkmeter/audio"
	"talkmeter/session"
)

// Message универсальное сообщение WebSocket-протокола.
// Поля заполняются в зависимости от Type.
type Message struct {
	Type string `json:"type"`

	// Сервер -> клиент
	State    *session.State  `json:"state,omitempty"`
	MicLevel float64         `json:"micLevel,omitempty"`
	Devices  []audio.Device  `json:"devices,omitempty"`
	Sessions []*SessionInfo  `json:"sessions,omitempty"`
	Session  *session.Record `json:"session,omitempty"`
	Error    string          `json:"error,omitempty"`
	Data     string          `json:"data,omitempty"`

	// Клиент -> сервер
	SessionID string `json:"sessionId,omitempty"`
}

// SessionInfo краткая сводка сессии для списка
type SessionInfo struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"startedAt"`
	TotalSeconds float64   `json:"totalSeconds"`
	YouSeconds   float64   `json:"youSeconds"`
	YouPercent   float64   `json:"youPercent"`
	Lines        int       `json:"lines"`
}
