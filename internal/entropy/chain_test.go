package entropy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRPCHashProvider(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{"value":{"blockhash":"9sHcv6xwn9YkB8nxTUGKDwPwNnmqVp5oLrDWFHZyxfa"}},"id":1}`))
	}))
	defer ts.Close()

	p := NewRPCHashProvider(ts.URL, nil)
	got, err := p.RecentHash(context.Background())
	if err != nil {
		t.Fatalf("recent hash: %v", err)
	}
	if string(got) != "9sHcv6xwn9YkB8nxTUGKDwPwNnmqVp5oLrDWFHZyxfa" {
		t.Fatalf("hash = %q", got)
	}
}

func TestRPCHashProviderErrors(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	if _, err := NewRPCHashProvider(bad.URL, nil).RecentHash(context.Background()); err == nil {
		t.Fatal("server error accepted")
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{"value":{}},"id":1}`))
	}))
	defer empty.Close()
	if _, err := NewRPCHashProvider(empty.URL, nil).RecentHash(context.Background()); err == nil {
		t.Fatal("empty blockhash accepted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer slow.Close()
	if _, err := NewRPCHashProvider(slow.URL, nil).RecentHash(ctx); err == nil {
		t.Fatal("cancelled context accepted")
	}
}
