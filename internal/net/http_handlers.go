// Package net exposes the session engine over HTTP and websockets: HTTP for
// the lobby/discovery path, one websocket per participant for the real-time
// path.
package net

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	server "nova-clash/server"
	"nova-clash/server/logging"
	lognet "nova-clash/server/logging/network"
	"nova-clash/server/persist"
)

// HTTPHandlerConfig wires the handler's collaborators.
type HTTPHandlerConfig struct {
	Store     persist.Store
	Journal   *persist.Journal
	Logger    *log.Logger
	Publisher logging.Publisher
}

// clientMessage is the single inbound frame shape. Type discriminates; the
// remaining fields are only read for the types that use them.
type clientMessage struct {
	Ver      int     `json:"ver,omitempty"`
	Type     string  `json:"type"`
	Action   string  `json:"action,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	SentAt   int64   `json:"sentAt"`
}

type createSessionRequest struct {
	HostName   string `json:"hostName"`
	GameMode   string `json:"gameMode"`
	MaxPlayers int    `json:"maxPlayers"`
	Settings   string `json:"settings"`
}

type createSessionResponse struct {
	Ver int    `json:"ver"`
	ID  string `json:"id"`
}

type recordScoreRequest struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
	GameMode string `json:"gameMode"`
}

// defaultMaxPlayers applies when a create request omits the capacity.
const defaultMaxPlayers = 8

var nextConnID atomic.Uint64

func sessionRecord(info server.SessionInfo) persist.SessionRecord {
	return persist.SessionRecord{
		ID:          info.ID,
		HostName:    info.HostName,
		Status:      info.Status,
		PlayerCount: info.PlayerCount,
		MaxPlayers:  info.MaxPlayers,
		GameMode:    info.GameMode,
		Settings:    info.Settings,
		CreatedAt:   time.UnixMilli(info.CreatedAt),
	}
}

// NewHTTPHandler builds the full route table around a registry.
func NewHTTPHandler(registry *server.Registry, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string                   `json:"status"`
			ServerTime int64                    `json:"serverTime"`
			Sessions   int                      `json:"sessions"`
			TickRate   int                      `json:"tickRate"`
			Heartbeat  int64                    `json:"heartbeatMillis"`
			Telemetry  server.TelemetrySnapshot `json:"telemetry"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Sessions:   registry.SessionCount(),
			TickRate:   server.TickRate(),
			Heartbeat:  server.HeartbeatInterval().Milliseconds(),
			Telemetry:  registry.TelemetrySnapshot(),
		}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/sessions", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.Method {
		case nethttp.MethodPost:
			var req createSessionRequest
			if r.Body != nil {
				defer r.Body.Close()
				decoder := json.NewDecoder(r.Body)
				if err := decoder.Decode(&req); err != nil && err != io.EOF {
					httpError(w, "invalid payload", nethttp.StatusBadRequest)
					return
				}
			}
			if req.HostName == "" {
				httpError(w, "hostName is required", nethttp.StatusBadRequest)
				return
			}
			if req.MaxPlayers == 0 {
				req.MaxPlayers = defaultMaxPlayers
			}
			id, err := registry.Create(req.HostName, req.GameMode, req.Settings, req.MaxPlayers)
			if err != nil {
				httpError(w, err.Error(), nethttp.StatusBadRequest)
				return
			}
			if cfg.Journal != nil {
				if session, ok := registry.Get(id); ok {
					cfg.Journal.RecordSession(sessionRecord(session.Info()))
				}
			}
			writeJSON(w, createSessionResponse{Ver: server.ProtocolVersion, ID: id})
		case nethttp.MethodGet:
			status := r.URL.Query().Get("status")
			infos := registry.List(status)
			// Durable lobby rows cover sessions from a previous uptime that
			// never finished; live sessions shadow them by id.
			if cfg.Store != nil && (status == "" || status == string(server.StatusLobby)) {
				if persisted, err := cfg.Store.ListLobbySessions(r.Context()); err != nil {
					logger.Printf("lobby listing from store failed: %v", err)
				} else {
					live := make(map[string]bool, len(infos))
					for _, info := range infos {
						live[info.ID] = true
					}
					for _, record := range persisted {
						if live[record.ID] {
							continue
						}
						infos = append(infos, server.SessionInfo{
							ID:          record.ID,
							HostName:    record.HostName,
							Status:      record.Status,
							PlayerCount: record.PlayerCount,
							MaxPlayers:  record.MaxPlayers,
							GameMode:    record.GameMode,
							Settings:    record.Settings,
							CreatedAt:   record.CreatedAt.UnixMilli(),
						})
					}
				}
			}
			writeJSON(w, server.NewSessionListMessage(infos))
		default:
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/highscores", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.Method {
		case nethttp.MethodGet:
			if cfg.Store == nil {
				httpError(w, "persistence disabled", nethttp.StatusServiceUnavailable)
				return
			}
			limit := 10
			if raw := r.URL.Query().Get("limit"); raw != "" {
				fmt.Sscanf(raw, "%d", &limit)
			}
			entries, err := cfg.Store.ListHighScores(r.Context(), limit, r.URL.Query().Get("mode"))
			if err != nil {
				logger.Printf("high score listing failed: %v", err)
				httpError(w, "failed to list scores", nethttp.StatusInternalServerError)
				return
			}
			type scoreRow struct {
				Username   string `json:"username"`
				Score      int    `json:"score"`
				GameMode   string `json:"gameMode"`
				AchievedAt int64  `json:"achievedAt"`
			}
			rows := make([]scoreRow, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, scoreRow{
					Username:   entry.Username,
					Score:      entry.Score,
					GameMode:   entry.GameMode,
					AchievedAt: entry.AchievedAt.UnixMilli(),
				})
			}
			writeJSON(w, struct {
				Ver    int        `json:"ver"`
				Scores []scoreRow `json:"scores"`
			}{Ver: server.ProtocolVersion, Scores: rows})
		case nethttp.MethodPost:
			if cfg.Journal == nil {
				httpError(w, "persistence disabled", nethttp.StatusServiceUnavailable)
				return
			}
			var req recordScoreRequest
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
			if req.Username == "" {
				httpError(w, "username is required", nethttp.StatusBadRequest)
				return
			}
			cfg.Journal.RecordHighScore(persist.ScoreEntry{
				Username: req.Username,
				Score:    req.Score,
				GameMode: req.GameMode,
			})
			w.WriteHeader(nethttp.StatusAccepted)
		default:
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		}
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	mux.HandleFunc("/ws", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			httpError(w, "missing session", nethttp.StatusBadRequest)
			return
		}
		session, ok := registry.Get(sessionID)
		if !ok {
			httpError(w, "unknown session", nethttp.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("upgrade failed for session %s: %v", sessionID, err)
			return
		}

		playerID := fmt.Sprintf("player-%d", nextConnID.Add(1))
		actor := logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer}
		serveConnection(conn, registry, session, playerID, actor, logger, publisher)
	})

	return mux
}

// serveConnection owns one websocket from join to implicit leave. Messages
// from the connection are processed in transport delivery order.
func serveConnection(conn *websocket.Conn, registry *server.Registry, session *server.Session, playerID string, actor logging.EntityRef, logger *log.Logger, publisher logging.Publisher) {
	sessionID := session.ID()
	joined := false
	defer func() {
		if joined {
			registry.Leave(sessionID, playerID)
		}
		conn.Close()
	}()

	writeMessage := func(payload any) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			reason := "read failed"
			if !joined {
				reason = "closed before join"
			}
			lognet.Disconnected(context.Background(), publisher, actor, sessionID, reason)
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Printf("discarding malformed message from %s: %v", playerID, err)
			lognet.Malformed(context.Background(), publisher, actor, sessionID, err)
			continue
		}

		switch msg.Type {
		case "join":
			if joined {
				continue
			}
			if _, err := registry.Join(sessionID, playerID); err != nil {
				writeMessage(server.NewErrorMessage(err))
				closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
				conn.WriteMessage(websocket.CloseMessage, closeMsg)
				return
			}
			if !session.Attach(playerID, conn) {
				return
			}
			joined = true
			lognet.Connected(context.Background(), publisher, actor, sessionID)
		case "input":
			if !joined {
				continue
			}
			switch msg.Action {
			case "move":
				session.HandleMove(playerID, server.MoveInput{
					X:        msg.X,
					Y:        msg.Y,
					Rotation: msg.Rotation,
					ClientTS: msg.SentAt,
				})
			case "shoot":
				session.HandleShoot(playerID, server.ShootInput{
					X:        msg.X,
					Y:        msg.Y,
					Rotation: msg.Rotation,
					ClientTS: msg.SentAt,
				})
			default:
				logger.Printf("unknown input action %q from %s", msg.Action, playerID)
			}
		case "start":
			if joined {
				session.Start()
			}
		case "heartbeat":
			if !joined {
				continue
			}
			now := time.Now()
			rtt, ok := session.Heartbeat(playerID, now, msg.SentAt)
			if !ok {
				continue
			}
			session.SendTo(playerID, server.NewHeartbeatMessage(now.UnixMilli(), msg.SentAt, rtt.Milliseconds()))
		case "leave":
			lognet.Disconnected(context.Background(), publisher, actor, sessionID, "left")
			return
		default:
			logger.Printf("unknown message type %q from %s", msg.Type, playerID)
		}
	}
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
