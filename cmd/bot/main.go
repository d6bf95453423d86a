// Command bot drives a live server with a scripted participant: it creates
// or joins a session, runs the prediction loop for a while, fires a few
// shots, and reports how often the server overruled its predictions.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"nova-clash/server"
	"nova-clash/server/client"
)

type clientMessage struct {
	Ver      int     `json:"ver"`
	Type     string  `json:"type"`
	Action   string  `json:"action,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	SentAt   int64   `json:"sentAt"`
}

type wsEmitter struct {
	conn *websocket.Conn
}

func (e *wsEmitter) send(msg clientMessage) error {
	msg.Ver = server.ProtocolVersion
	return e.conn.WriteJSON(msg)
}

func (e *wsEmitter) SendMove(x, y, rotation float64, sentAt int64) error {
	return e.send(clientMessage{Type: "input", Action: "move", X: x, Y: y, Rotation: rotation, SentAt: sentAt})
}

func (e *wsEmitter) SendShoot(x, y, rotation float64, sentAt int64) error {
	return e.send(clientMessage{Type: "input", Action: "shoot", X: x, Y: y, Rotation: rotation, SentAt: sentAt})
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server host:port")
	sessionID := flag.String("session", "", "session to join (created when empty)")
	name := flag.String("name", "bot", "host name used when creating a session")
	duration := flag.Duration("duration", 10*time.Second, "how long to drive inputs")
	flag.Parse()

	id := *sessionID
	if id == "" {
		created, err := createSession(*addr, *name)
		if err != nil {
			log.Fatalf("create session: %v", err)
		}
		id = created
		log.Printf("created session %s", id)
	}

	wsURL := url.URL{Scheme: "ws", Host: *addr, Path: "/ws", RawQuery: "session=" + url.QueryEscape(id)}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		log.Fatalf("dial %s: %v", wsURL.String(), err)
	}
	defer conn.Close()

	emitter := &wsEmitter{conn: conn}
	if err := emitter.send(clientMessage{Type: "join"}); err != nil {
		log.Fatalf("join: %v", err)
	}

	incoming := make(chan []byte, 64)
	go func() {
		defer close(incoming)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			incoming <- data
		}
	}()

	// The join snapshot tells us our assigned identity.
	world := awaitSnapshot(incoming)
	if world == nil {
		log.Fatal("no join snapshot received")
	}
	log.Printf("joined %s as %s", id, world.Own().ID)

	deadline := time.After(*duration)
	ticker := time.NewTicker(time.Second / time.Duration(server.TickRate()))
	defer ticker.Stop()
	heartbeats := time.NewTicker(server.HeartbeatInterval())
	defer heartbeats.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	last := time.Now()
	in := client.Input{Forward: true}

	for {
		select {
		case <-deadline:
			emitter.send(clientMessage{Type: "leave"})
			own := world.Own()
			fmt.Printf("final position x=%.1f y=%.1f corrections=%d\n", own.X, own.Y, world.Corrections())
			return
		case <-heartbeats.C:
			emitter.send(clientMessage{Type: "heartbeat", SentAt: time.Now().UnixMilli()})
		case data, ok := <-incoming:
			if !ok {
				log.Fatal("connection closed by server")
			}
			dispatch(world, data)
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			// Shuffle the input occasionally so the walk covers the arena.
			if rng.Intn(10) == 0 {
				in.TurnLeft = rng.Intn(2) == 0
				in.TurnRight = !in.TurnLeft && rng.Intn(2) == 0
				in.Shoot = rng.Intn(20) == 0
			}
			if err := world.Step(in, dt, now.UnixMilli(), emitter); err != nil {
				log.Fatalf("send input: %v", err)
			}
			in.Shoot = false
		}
	}
}

func awaitSnapshot(incoming <-chan []byte) *client.World {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case <-timeout:
			return nil
		case data, ok := <-incoming:
			if !ok {
				return nil
			}
			var envelope struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &envelope); err != nil || envelope.Type != "session_snapshot" {
				continue
			}
			var snapshot server.SnapshotMessage
			if err := json.Unmarshal(data, &snapshot); err != nil || snapshot.You == "" {
				continue
			}
			world := client.NewWorld(snapshot.You)
			world.ApplySnapshot(snapshot)
			return world
		}
	}
}

func dispatch(world *client.World, data []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return
	}
	switch envelope.Type {
	case "session_snapshot":
		var msg server.SnapshotMessage
		if json.Unmarshal(data, &msg) == nil {
			world.ApplySnapshot(msg)
		}
	case "player_moved":
		var msg server.MovedMessage
		if json.Unmarshal(data, &msg) == nil {
			world.ApplyMoved(msg)
		}
	case "player_shot":
		var msg server.ShotMessage
		if json.Unmarshal(data, &msg) == nil {
			world.ApplyShot(msg)
		}
	case "player_joined":
		var msg server.JoinedMessage
		if json.Unmarshal(data, &msg) == nil {
			world.ApplyJoined(msg)
		}
	case "player_left":
		var msg server.LeftMessage
		if json.Unmarshal(data, &msg) == nil {
			world.ApplyLeft(msg)
		}
	}
}

func createSession(addr, hostName string) (string, error) {
	body, err := json.Marshal(map[string]any{"hostName": hostName})
	if err != nil {
		return "", err
	}
	resp, err := http.Post("http://"+addr+"/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", err
	}
	return created.ID, nil
}
