package server

import (
	"errors"
	"testing"
	"time"
)

func TestCreateValidatesCapacity(t *testing.T) {
	r := NewRegistry(nil, nil)
	defer r.Close()

	for _, maxPlayers := range []int{0, 1, 17, -3} {
		if _, err := r.Create("host", "", "", maxPlayers); !errors.Is(err, ErrCapacity) {
			t.Fatalf("maxPlayers=%d: expected ErrCapacity, got %v", maxPlayers, err)
		}
	}
	if _, err := r.Create("host", "freeze-tag", "", 4); err == nil {
		t.Fatalf("expected unknown game mode to be rejected")
	}
}

func TestCreateDefaultsGameMode(t *testing.T) {
	r := NewRegistry(nil, nil)
	defer r.Close()

	id, err := r.Create("host", "", "", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(id) != sessionIDLength {
		t.Fatalf("expected %d-char session id, got %q", sessionIDLength, id)
	}
	session, ok := r.Get(id)
	if !ok {
		t.Fatalf("created session must be retrievable")
	}
	info := session.Info()
	if info.GameMode != DefaultGameMode {
		t.Fatalf("expected default game mode, got %q", info.GameMode)
	}
	if info.Status != string(StatusLobby) {
		t.Fatalf("new session must start in lobby, got %q", info.Status)
	}
}

func TestJoinUnknownSession(t *testing.T) {
	r := NewRegistry(nil, nil)
	defer r.Close()

	if _, err := r.Join("NOSUCH", "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// Leave of anything unknown is a no-op; disconnect paths rely on it.
	r.Leave("NOSUCH", "p1")
}

func TestJoinAdmitsUpToCapacity(t *testing.T) {
	r := NewRegistry(nil, nil)
	defer r.Close()

	id, err := r.Create("host", "duel", "", 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Join(id, "p1"); err != nil {
		t.Fatalf("join p1: %v", err)
	}
	if _, err := r.Join(id, "p2"); err != nil {
		t.Fatalf("join p2: %v", err)
	}
	if _, err := r.Join(id, "p3"); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("expected ErrSessionFull, got %v", err)
	}

	r.Leave(id, "p2")
	if _, err := r.Join(id, "p3"); err != nil {
		t.Fatalf("lobby slot must reopen after leave: %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	r := NewRegistry(nil, nil)
	defer r.Close()

	lobbyID, err := r.Create("alice", "", "", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	activeID, err := r.Create("bob", "", "", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	active, _ := r.Get(activeID)
	active.Start()

	all := r.List("")
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}
	lobbies := r.List(string(StatusLobby))
	if len(lobbies) != 1 || lobbies[0].ID != lobbyID {
		t.Fatalf("expected only the lobby session, got %+v", lobbies)
	}
	actives := r.List(string(StatusActive))
	if len(actives) != 1 || actives[0].ID != activeID {
		t.Fatalf("expected only the active session, got %+v", actives)
	}
}

func TestFinishedSessionIsEvicted(t *testing.T) {
	finished := make(chan SessionInfo, 1)
	r := NewRegistry(nil, func(info SessionInfo) { finished <- info })
	defer r.Close()

	id, err := r.Create("host", "", "", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Join(id, "p1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	session, _ := r.Get(id)
	session.Start()
	r.Leave(id, "p1")

	select {
	case info := <-finished:
		if info.ID != id || info.Status != string(StatusFinished) {
			t.Fatalf("unexpected final snapshot %+v", info)
		}
	case <-time.After(time.Second):
		t.Fatalf("finished session never reached the persistence hand-off")
	}
	if _, ok := r.Get(id); ok {
		t.Fatalf("finished session must be evicted from the registry")
	}
	if r.SessionCount() != 0 {
		t.Fatalf("expected empty registry, got %d", r.SessionCount())
	}
}

func TestSessionIDsUseUnambiguousAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := generateSessionID()
		if len(id) != sessionIDLength {
			t.Fatalf("unexpected id length %d", len(id))
		}
		for _, c := range id {
			found := false
			for _, allowed := range sessionIDChars {
				if c == allowed {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("id %q contains %q outside the alphabet", id, c)
			}
		}
	}
}
