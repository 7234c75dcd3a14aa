package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"hearsay.ai/internal/sim/tuning"
	"hearsay.ai/internal/sim/world"
)

func TestAdminState_ServesPublishedStats(t *testing.T) {
	w, err := world.New(world.ConfigFromTuning(tuning.Defaults()))
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	resp := make(chan world.JoinResponse, 1)
	w.StepOnce([]world.JoinRequest{{Name: "alice", Out: make(chan []byte, 64), Resp: resp}}, nil, nil)
	<-resp

	h := adminStateHandler(w)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var got struct {
		WorldID string `json:"world_id"`
		Tick    uint64 `json:"tick"`
		Agents  int    `json:"agents"`
		Facts   int    `json:"facts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.WorldID != w.ID() || got.Tick != 1 || got.Agents != 1 || got.Facts == 0 {
		t.Fatalf("state=%+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	rec = httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d", rec.Code)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:80": true,
		"[::1]:80":     true,
		"10.0.0.2:80":  false,
		"bogus":        false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v", addr, got)
		}
	}
}
