package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServerWiring(t *testing.T) {
	config := defaultConfig()
	config.Terminal.Origin = "tab-test"
	config.Store.Driver = "memory"
	config.Ledger.OpeningBalance = "50"

	services, err := setupServices(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(services.Close)

	ts := httptest.NewServer(setupServer(config, services).Handler)
	t.Cleanup(ts.Close)

	for _, path := range []string{"/health", "/metrics", "/api/terminal/bets", "/api/terminal/draws/state", "/ws/stats"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s = %d", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(ts.URL + "/api/terminal/bets")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Available string `json:"available"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Available != "50.00" {
		t.Fatalf("available = %q", body.Available)
	}
}

func TestUnknownDriversFail(t *testing.T) {
	config := defaultConfig()
	config.Store.Driver = "etcd"
	if _, err := setupServices(context.Background(), config); err == nil {
		t.Fatal("expected unknown store driver error")
	}
}
