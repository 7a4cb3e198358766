package utils

import (
	"errors"
	"strings"
	"testing"

	"github.com/mapleleafu/cardarena/arena-backend/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{name: "valid", raw: `{"cmd":"start","stake":2,"deck":"red","seed":"AB12"}`},
		{name: "malformed", raw: `{"cmd":"start","stake":"two"}`, wantErr: "malformed message"},
		{name: "missing deck", raw: `{"cmd":"start","stake":1}`, wantErr: `field "deck" failed required`},
		{name: "stake out of range", raw: `{"cmd":"start","stake":9,"deck":"red"}`, wantErr: `field "stake" failed max=8`},
		{name: "bad seed", raw: `{"cmd":"start","stake":1,"deck":"red","seed":"no spaces"}`, wantErr: `field "seed" failed alphanum`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Decode[models.StartRequest](models.Inbound{Raw: []byte(tt.raw)})
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if req.Stake != 2 || req.Deck != "red" || req.Seed != "AB12" {
					t.Fatalf("decoded %+v", req)
				}
				return
			}
			var bad responses.BadRequestError
			if !errors.As(err, &bad) {
				t.Fatalf("expected BadRequestError, got %v", err)
			}
			if !strings.Contains(bad.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", bad.Error(), tt.wantErr)
			}
		})
	}
}

func TestDecodeScoreRequiresValue(t *testing.T) {
	if _, err := Decode[models.ScoreRequest](models.Inbound{Raw: []byte(`{"cmd":"score"}`)}); err == nil {
		t.Fatal("expected missing score to fail")
	}
	for _, raw := range []string{`{"cmd":"score","score":0}`, `{"cmd":"score","score":-150.5}`} {
		req, err := Decode[models.ScoreRequest](models.Inbound{Raw: []byte(raw)})
		if err != nil || req.Score == nil {
			t.Fatalf("%s rejected: %v", raw, err)
		}
	}
}

func TestDecodeCollectKind(t *testing.T) {
	if _, err := Decode[models.CollectRequest](models.Inbound{Raw: []byte(`{"kind":"gold"}`)}); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
	if _, err := Decode[models.CollectRequest](models.Inbound{Raw: []byte(`{"kind":"jokers"}`)}); err != nil {
		t.Fatalf("jokers rejected: %v", err)
	}
}
