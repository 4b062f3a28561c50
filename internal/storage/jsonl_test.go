package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"routeScope/internal/model"
)

type failingSink struct{}

func (failingSink) PutSnapshots(context.Context, []model.RouteSnapshot) error {
	return errors.New("down")
}

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "snapshots.jsonl")
	store := NewJsonlStorage(path)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		err := store.PutSnapshots(context.Background(), []model.RouteSnapshot{
			{RequestID: "r1", RequestedAt: at, Rank: i + 1, Venue: "Uniswap", AmountOut: "0.5"},
		})
		if err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var lines []model.RouteSnapshot
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var snap model.RouteSnapshot
		if err := json.Unmarshal(scanner.Bytes(), &snap); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		lines = append(lines, snap)
	}
	if len(lines) != 2 || lines[1].Rank != 2 || lines[0].Venue != "Uniswap" {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	sink := MultiSink{failingSink{}, NewJsonlStorage(path), nil}

	err := sink.PutSnapshots(context.Background(), []model.RouteSnapshot{{RequestID: "r1"}})
	if err == nil {
		t.Fatalf("expected error from failing sink")
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("healthy sink should still write: %v", statErr)
	}
}
