package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meridian-research/aave-liquidator/internal/pkg/httpclient"
	"golang.org/x/time/rate"
)

func testHTTPClient() *httpclient.Client {
	cfg := httpclient.DefaultConfig()
	cfg.RateLimit = rate.Inf
	cfg.RateBurst = 1
	cfg.MaxRetries = 0
	return httpclient.NewClient(cfg, nil)
}

// fakeSubgraph serves `total` sequential borrower ids, honoring the
// id_gt cursor the client sends.
func fakeSubgraph(t *testing.T, total int) *httptest.Server {
	t.Helper()
	ids := make([]string, total)
	for i := range ids {
		ids[i] = fmt.Sprintf("0x%040x", i+1)
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables struct {
				First  int    `json:"first"`
				LastID string `json:"lastID"`
			} `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var page []map[string]string
		for _, id := range ids {
			if id > req.Variables.LastID && len(page) < req.Variables.First {
				page = append(page, map[string]string{"id": id})
			}
		}

		resp := map[string]any{"data": map[string]any{"users": page}}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encoding response: %v", err)
		}
	}))
}

func TestListBorrowersPaginates(t *testing.T) {
	total := PageSize + 37
	server := fakeSubgraph(t, total)
	defer server.Close()

	client := NewClient(server.URL, testHTTPClient(), nil)
	accounts, err := client.ListBorrowers(context.Background())
	if err != nil {
		t.Fatalf("ListBorrowers: %v", err)
	}
	if len(accounts) != total {
		t.Fatalf("accounts = %d, want %d", len(accounts), total)
	}
	// Ascending-id pagination must not duplicate across page boundaries.
	seen := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		if seen[a.Hex()] {
			t.Fatalf("duplicate account %s", a.Hex())
		}
		seen[a.Hex()] = true
	}
}

func TestListBorrowersEmptyUniverse(t *testing.T) {
	server := fakeSubgraph(t, 0)
	defer server.Close()

	client := NewClient(server.URL, testHTTPClient(), nil)
	accounts, err := client.ListBorrowers(context.Background())
	if err != nil {
		t.Fatalf("ListBorrowers: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("accounts = %d, want 0", len(accounts))
	}
}

func TestListBorrowersSurfacesGraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"indexer overloaded"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, testHTTPClient(), nil)
	if _, err := client.ListBorrowers(context.Background()); err == nil {
		t.Fatal("expected an error from the errors payload")
	}
}
