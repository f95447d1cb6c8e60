package database

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestOpenSQLiteMemory(t *testing.T) {
	store, err := Open(context.Background(), "sqlite://", Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
