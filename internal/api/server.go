// Package api поднимает WebSocket-сервер live-статуса: фронтенд
// подписывается на /ws и получает снимки трекера после каждого чанка.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"talkmeter/audio"
	"talkmeter/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	Port       string
	SessionMgr *session.Manager
	Capture    *audio.Capture

	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

func NewServer(port string, sessMgr *session.Manager, cap *audio.Capture) *Server {
	return &Server{
		Port:       port,
		SessionMgr: sessMgr,
		Capture:    cap,
		clients:    make(map[*websocket.Conn]bool),
	}
}

// Start блокирующе запускает HTTP-сервер
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/sessions/", s.handleSessionsAPI)

	log.Printf("[API] Listening on :%s", s.Port)
	return http.ListenAndServe(":"+s.Port, mux)
}

// BroadcastState рассылает снимок трекера всем подключённым клиентам
func (s *Server) BroadcastState(state session.State) {
	s.broadcast(Message{Type: "state", State: &state})
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) == 0 {
		return
	}

	// WriteJSON у gorilla не потокобезопасен для одного соединения,
	// поэтому все записи сериализуются общим мьютексом
	for conn := range s.clients {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("[API] Write error: %v", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[API] Upgrade:", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		s.processMessage(conn, msg)
	}
}

func (s *Server) processMessage(conn *websocket.Conn, msg Message) {
	switch msg.Type {
	case "get_devices":
		if s.Capture == nil {
			conn.WriteJSON(Message{Type: "error", Data: "audio capture not available"})
			return
		}
		devices, err := s.Capture.ListInputDevices()
		if err != nil {
			conn.WriteJSON(Message{Type: "error", Data: err.Error()})
			return
		}
		conn.WriteJSON(Message{Type: "devices", Devices: devices})

	case "get_sessions":
		infos, err := s.listSessions()
		if err != nil {
			conn.WriteJSON(Message{Type: "error", Data: err.Error()})
			return
		}
		conn.WriteJSON(Message{Type: "sessions_list", Sessions: infos})

	case "get_session":
		rec, err := s.SessionMgr.Load(msg.SessionID)
		if err != nil {
			conn.WriteJSON(Message{Type: "error", Data: err.Error()})
			return
		}
		conn.WriteJSON(Message{Type: "session_details", Session: rec})
	}
}

func (s *Server) listSessions() ([]*SessionInfo, error) {
	ids, err := s.SessionMgr.List()
	if err != nil {
		return nil, err
	}

	infos := make([]*SessionInfo, 0, len(ids))
	for _, id := range ids {
		rec, err := s.SessionMgr.Load(id)
		if err != nil {
			log.Printf("[API] Skipping session %s: %v", id, err)
			continue
		}
		infos = append(infos, &SessionInfo{
			ID:           rec.ID,
			StartedAt:    rec.StartedAt,
			TotalSeconds: rec.TotalSeconds,
			YouSeconds:   rec.YouSeconds,
			YouPercent:   rec.Percentage,
			Lines:        len(rec.Lines),
		})
	}
	return infos, nil
}

func (s *Server) handleSessionsAPI(w http.ResponseWriter, r *http.Request) {
	// CORS для dev-режима фронтенда
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	path := r.URL.Path[len("/api/sessions/"):]
	w.Header().Set("Content-Type", "application/json")

	if path == "" {
		infos, err := s.listSessions()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(infos)
		return
	}

	rec, err := s.SessionMgr.Load(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	json.NewEncoder(w).Encode(rec)
}
