package session

import (
	"context"
	"testing"
)

func newTestContext(kv KV) (*Context, *[]string) {
	var redirects []string
	auth := NewContext(NewStore(kv), func(path string) {
		redirects = append(redirects, path)
	})
	return auth, &redirects
}

func TestContextInitialStateIsLoading(t *testing.T) {
	auth, _ := newTestContext(NewMemoryKV())
	if !auth.Loading() {
		t.Fatal("expected loading before hydration")
	}
	if _, ok := auth.Session(); ok {
		t.Fatal("expected no session before hydration")
	}
}

func TestContextHydrateRunsOnce(t *testing.T) {
	kv := NewMemoryKV()
	_ = NewStore(kv).Write("f1", "Alice")

	auth, _ := newTestContext(kv)
	auth.Hydrate()
	if auth.Loading() {
		t.Fatal("expected loading to end after hydration")
	}
	got, ok := auth.Session()
	if !ok || got.ID != "f1" {
		t.Fatalf("expected hydrated session got %+v", got)
	}

	_ = NewStore(kv).Clear()
	auth.Hydrate()
	if _, ok := auth.Session(); !ok {
		t.Fatal("expected second hydrate to be ignored")
	}
}

func TestContextLoginWritesThrough(t *testing.T) {
	kv := NewMemoryKV()
	auth, _ := newTestContext(kv)
	auth.Hydrate()

	if err := auth.Login("f1", "Alice"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got, ok := auth.Session(); !ok || got.Name != "Alice" {
		t.Fatalf("expected in-memory session got %+v", got)
	}
	if got, ok := NewStore(kv).Read(); !ok || got.ID != "f1" {
		t.Fatalf("expected persisted session got %+v", got)
	}
}

func TestContextLoginStorageFailureKeepsStateConsistent(t *testing.T) {
	auth, _ := newTestContext(&failingKV{})
	auth.Hydrate()

	if err := auth.Login("f1", "Alice"); err == nil {
		t.Fatal("expected login to fail")
	}
	if _, ok := auth.Session(); ok {
		t.Fatal("expected no in-memory session after failed write")
	}
}

func TestContextLogoutClearsBothCopies(t *testing.T) {
	kv := NewMemoryKV()
	auth, redirects := newTestContext(kv)
	auth.Hydrate()
	_ = auth.Login("f1", "Alice")

	if err := auth.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := auth.Session(); ok {
		t.Fatal("expected in-memory session cleared")
	}
	if _, ok := NewStore(kv).Read(); ok {
		t.Fatal("expected persisted session cleared")
	}
	if len(*redirects) != 1 || (*redirects)[0] != EntryRoute {
		t.Fatalf("expected redirect to entry route got %v", *redirects)
	}
}

func TestContextGuard(t *testing.T) {
	cases := []struct {
		name         string
		hydrate      bool
		login        bool
		path         string
		wantRedirect bool
	}{
		{"protectedWithoutSession", true, false, "/dashboard", true},
		{"protectedNestedWithoutSession", true, false, "/dashboard/messages/m1", true},
		{"protectedWithSession", true, true, "/dashboard", false},
		{"publicWithoutSession", true, false, "/login", false},
		{"lookalikePath", true, false, "/dashboards", false},
		{"beforeHydration", false, false, "/dashboard", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth, redirects := newTestContext(NewMemoryKV())
			if tc.hydrate {
				auth.Hydrate()
			}
			if tc.login {
				_ = auth.Login("f1", "Alice")
			}

			got := auth.Guard(tc.path)
			if got != tc.wantRedirect {
				t.Fatalf("expected redirect %v got %v", tc.wantRedirect, got)
			}
			if tc.wantRedirect && (len(*redirects) != 1 || (*redirects)[0] != EntryRoute) {
				t.Fatalf("expected navigation to entry route got %v", *redirects)
			}
			if !tc.wantRedirect && len(*redirects) != 0 {
				t.Fatalf("expected no navigation got %v", *redirects)
			}
		})
	}
}

func TestContextDispatch(t *testing.T) {
	auth, _ := newTestContext(NewMemoryKV())
	auth.Hydrate()
	if got := auth.Dispatch(); got != LoginRoute {
		t.Fatalf("expected login route got %s", got)
	}
	_ = auth.Login("f1", "Alice")
	if got := auth.Dispatch(); got != DashboardRoute {
		t.Fatalf("expected dashboard route got %s", got)
	}
}

func TestFromContextPanicsWithoutProvider(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic without provider")
		}
	}()
	FromContext(context.Background())
}

func TestFromContextReturnsProvidedContext(t *testing.T) {
	auth, _ := newTestContext(NewMemoryKV())
	ctx := WithContext(context.Background(), auth)
	if FromContext(ctx) != auth {
		t.Fatal("expected provided auth context")
	}
	if _, ok := Lookup(context.Background()); ok {
		t.Fatal("expected lookup to fail without provider")
	}
}
