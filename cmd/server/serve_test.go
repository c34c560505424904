package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newsfront/internal/comments"
	"github.com/newsfront/internal/contentapi"
	"github.com/rs/zerolog"
)

func TestServerShutdownEndsCommentStreams(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}, "meta": map[string]any{"total": 0, "page": 1, "limit": 10}})
	}))
	defer upstream.Close()

	client := contentapi.NewClient(upstream.URL, time.Second, zerolog.Nop())
	rooms := comments.NewRegistry(client, comments.RegistryOptions{Logger: zerolog.Nop()})
	defer rooms.Close()

	// 与评论流相同：直到订阅被关闭才返回
	stream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		room, err := rooms.Room(r.Context(), "a1")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		changes, cancel := room.Watch()
		defer cancel()
		_, _ = io.WriteString(w, "ready\n")
		w.(http.Flusher).Flush()
		for range changes {
		}
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	srv := newHTTPServer(ln.Addr().String(), stream, rooms.Close)
	go func() { _ = srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/stream")
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	if line, err := reader.ReadString('\n'); err != nil || line != "ready\n" {
		t.Fatalf("expected stream to start, got %q (%v)", line, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("expected shutdown to finish while a stream is open, got %v", err)
	}
	if rest, err := io.ReadAll(reader); err != nil || len(rest) != 0 {
		t.Fatalf("expected stream to end cleanly, got %q (%v)", rest, err)
	}
}
