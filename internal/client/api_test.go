package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var viewed []string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/code", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.Code == "ABC123" {
			_, _ = w.Write([]byte(`{"friend":{"id":"f1","name":"Alice"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"friend":null}`))
	})
	mux.HandleFunc("GET /api/v1/recipients/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "f1" {
			_, _ = w.Write([]byte(`{"messages":[],"unviewed":0}`))
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"m1","recipientId":"f1","storageRef":"videos/one.mp4","title":"Happy Birthday","viewed":false}],"unviewed":1}`))
	})
	mux.HandleFunc("POST /api/v1/messages/{id}/viewed", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"message not found"}`))
			return
		}
		viewed = append(viewed, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/v1/playback-urls", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StorageRef string `json:"storageRef"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req.StorageRef {
		case "videos/gone.mp4":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"video could not be found"}`))
		case "videos/broken.mp4":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"failed to load video"}`))
		default:
			_, _ = w.Write([]byte(`{"url":"` + "http://" + r.Host + "/objects/" + req.StorageRef + `"}`))
		}
	})
	mux.HandleFunc("GET /objects/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("video-bytes"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &viewed
}

func TestAPIAuthenticateByCode(t *testing.T) {
	srv, _ := newTestServer(t)
	api := New(srv.URL+"/", time.Second)

	friend, err := api.AuthenticateByCode(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if friend == nil || friend.ID != "f1" || friend.Name != "Alice" {
		t.Fatalf("unexpected friend %+v", friend)
	}

	friend, err = api.AuthenticateByCode(context.Background(), "ZZZZZZ")
	if err != nil || friend != nil {
		t.Fatalf("expected nil friend without error got %+v %v", friend, err)
	}
}

func TestAPIListAndMarkViewed(t *testing.T) {
	srv, viewed := newTestServer(t)
	api := New(srv.URL, time.Second)

	messages, err := api.ListMessages(context.Background(), "f1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(messages) != 1 || messages[0].Title != "Happy Birthday" {
		t.Fatalf("unexpected messages %+v", messages)
	}

	if err := api.MarkViewed(context.Background(), "f1", "m1"); err != nil {
		t.Fatalf("mark viewed: %v", err)
	}
	if len(*viewed) != 1 || (*viewed)[0] != "m1" {
		t.Fatalf("unexpected viewed calls %v", *viewed)
	}

	err = api.MarkViewed(context.Background(), "f1", "missing")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusNotFound || statusErr.Message != "message not found" {
		t.Fatalf("expected 404 status error got %v", err)
	}
}

func TestAPIMintPlaybackURL(t *testing.T) {
	srv, _ := newTestServer(t)
	api := New(srv.URL, time.Second)

	url, err := api.MintPlaybackURL(context.Background(), "videos/one.mp4", false, "Happy Birthday")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	var buf bytes.Buffer
	n, err := api.Fetch(context.Background(), url, &buf)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if n != int64(len("video-bytes")) || buf.String() != "video-bytes" {
		t.Fatalf("unexpected download %q", buf.String())
	}

	if _, err := api.MintPlaybackURL(context.Background(), "videos/gone.mp4", false, ""); !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable got %v", err)
	}
	_, err = api.MintPlaybackURL(context.Background(), "videos/broken.mp4", false, "")
	if err == nil || errors.Is(err, ErrUnresolvable) {
		t.Fatalf("expected backend failure got %v", err)
	}
}
