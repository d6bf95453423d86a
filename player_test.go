package server

import (
	"math"
	"testing"
)

func TestSpawnPositionsSitOnTheRing(t *testing.T) {
	centerX, centerY := arenaWidth/2, arenaHeight/2
	seen := make(map[[2]int]bool)
	for slot := 0; slot < maxSessionPlayers; slot++ {
		x, y, rotation := spawnPosition(slot)
		dist := math.Hypot(x-centerX, y-centerY)
		if math.Abs(dist-spawnRingRadius) > 1e-9 {
			t.Fatalf("slot %d: spawn off the ring, dist=%v", slot, dist)
		}
		if rotation < 0 || rotation >= fullCircle {
			t.Fatalf("slot %d: rotation %v outside [0, 2π)", slot, rotation)
		}
		key := [2]int{int(math.Round(x)), int(math.Round(y))}
		if seen[key] {
			t.Fatalf("slot %d: spawn overlaps an earlier slot at %v", slot, key)
		}
		seen[key] = true
	}
}

func TestNormalizeRotation(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{fullCircle, 0},
		{-math.Pi / 2, 3 * math.Pi / 2},
		{fullCircle + 0.5, 0.5},
		{-fullCircle - 0.5, fullCircle - 0.5},
	}
	for _, tc := range cases {
		if got := normalizeRotation(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("normalizeRotation(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestClampBoundsArenaPositions(t *testing.T) {
	if got := clamp(-50, playerHalf, arenaWidth-playerHalf); got != playerHalf {
		t.Fatalf("expected left wall clamp, got %v", got)
	}
	if got := clamp(arenaWidth+50, playerHalf, arenaWidth-playerHalf); got != arenaWidth-playerHalf {
		t.Fatalf("expected right wall clamp, got %v", got)
	}
	if got := clamp(400, playerHalf, arenaWidth-playerHalf); got != 400 {
		t.Fatalf("expected in-bounds passthrough, got %v", got)
	}
}
