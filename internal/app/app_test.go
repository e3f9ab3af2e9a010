package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/vmail/backend/internal/client"
)

type fakeServer struct {
	mu     sync.Mutex
	viewed []string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/code", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Code == "ABC123" {
			_, _ = w.Write([]byte(`{"friend":{"id":"f1","name":"Alice"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"friend":null}`))
	})
	mux.HandleFunc("GET /api/v1/recipients/f1/messages", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[
			{"id":"m1","recipientId":"f1","storageRef":"videos/one.mp4","title":"Happy Birthday","viewed":false},
			{"id":"m2","recipientId":"f1","storageRef":"videos/two.mp4","title":"Thank You","viewed":true}
		],"unviewed":1}`))
	})
	mux.HandleFunc("POST /api/v1/messages/{id}/viewed", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.viewed = append(f.viewed, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/v1/playback-urls", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StorageRef string `json:"storageRef"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_, _ = w.Write([]byte(`{"url":"http://` + r.Host + `/objects/` + req.StorageRef + `"}`))
	})
	mux.HandleFunc("GET /objects/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("video-bytes"))
	})
	return mux
}

func (f *fakeServer) views() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.viewed...)
}

func setupClient(t *testing.T) *fakeServer {
	t.Helper()
	fake := &fakeServer{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	t.Setenv("VMAIL_CLIENT_BASE_URL", srv.URL)
	t.Setenv("VMAIL_CLIENT_SESSION_FILE", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("VMAIL_LOG_LEVEL", "error")
	return fake
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCommand(strings.NewReader(stdin), &out, &errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunUnknownCommand(t *testing.T) {
	if _, err := runCLI(t, "", "explode"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestProtectedCommandsRequireSession(t *testing.T) {
	setupClient(t)
	for _, args := range [][]string{{"inbox"}, {"watch", "m1"}, {"download", "m1"}} {
		if _, err := runCLI(t, "", args...); !errors.Is(err, ErrNoSession) {
			t.Fatalf("%v: expected ErrNoSession got %v", args, err)
		}
	}
}

func TestLoginInboxLogoutFlow(t *testing.T) {
	setupClient(t)

	if _, err := runCLI(t, "", "login", "ZZZZZZ"); err == nil || err.Error() != client.InvalidCodeMessage {
		t.Fatalf("expected invalid code error got %v", err)
	}

	out, err := runCLI(t, "ZZZZZZ\nABC123\n", "login")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, client.InvalidCodeMessage) || !strings.Contains(out, "Welcome, Alice") {
		t.Fatalf("unexpected login output %q", out)
	}

	out, err = runCLI(t, "", "login", "ABC123")
	if err != nil || !strings.Contains(out, "Already signed in as Alice") {
		t.Fatalf("expected existing session to short-circuit login got %q %v", out, err)
	}

	out, err = runCLI(t, "", "inbox")
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	for _, want := range []string{"Welcome, Alice", "You have 1 new message from Joshua", "Happy Birthday", "[Viewed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected inbox output to contain %q got %q", want, out)
		}
	}

	out, err = runCLI(t, "", "logout")
	if err != nil || !strings.Contains(out, "Signed out") {
		t.Fatalf("logout: %q %v", out, err)
	}
	if _, err := runCLI(t, "", "inbox"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after logout got %v", err)
	}
}

func TestWatchMarksViewedOnce(t *testing.T) {
	fake := setupClient(t)
	if _, err := runCLI(t, "", "login", "ABC123"); err != nil {
		t.Fatalf("login: %v", err)
	}

	out, err := runCLI(t, "", "watch", "m1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !strings.Contains(out, "/objects/videos/one.mp4") {
		t.Fatalf("expected playback url in output got %q", out)
	}
	if views := fake.views(); len(views) != 1 || views[0] != "m1" {
		t.Fatalf("expected one view mutation got %v", views)
	}

	if _, err := runCLI(t, "", "watch", "m1", "--no-mark"); err != nil {
		t.Fatalf("watch --no-mark: %v", err)
	}
	if views := fake.views(); len(views) != 1 {
		t.Fatalf("expected --no-mark to skip the mutation got %v", views)
	}

	if _, err := runCLI(t, "", "watch", "m9"); err == nil {
		t.Fatal("expected error for message outside the inbox")
	}
}

func TestDownloadWritesFile(t *testing.T) {
	setupClient(t)
	if _, err := runCLI(t, "", "login", "ABC123"); err != nil {
		t.Fatalf("login: %v", err)
	}

	target := filepath.Join(t.TempDir(), "birthday.mp4")
	out, err := runCLI(t, "", "download", "m1", "--output", target)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	contents, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(contents) != "video-bytes" || !strings.Contains(out, "Saved") {
		t.Fatalf("unexpected download %q output %q", contents, out)
	}
}

func TestSeedFileName(t *testing.T) {
	if got := seedFileName("dev"); got != "dev_seed.sql" {
		t.Fatalf("expected dev_seed.sql got %s", got)
	}
	if got := seedFileName("custom.sql"); got != "custom.sql" {
		t.Fatalf("expected custom.sql got %s", got)
	}
}
