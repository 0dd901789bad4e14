package cache

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
)

func TestCoopEncodingKeepsOptionalFields(t *testing.T) {
	t.Parallel()

	host := "app.ampnet.io"
	in := domain.Coop{
		Identifier:           "ampnet",
		Name:                 "AMPnet",
		Hostname:             &host,
		Config:               json.RawMessage(`{"theme":"dark"}`),
		NeedUserVerification: true,
		CreatedAt:            time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	raw, err := encodeCoop(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decodeCoop(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Identifier != in.Identifier || out.Hostname == nil || *out.Hostname != host {
		t.Fatalf("unexpected coop: %+v", out)
	}
	if out.Logo != nil {
		t.Fatalf("expected nil logo")
	}
	if !bytes.Equal(out.Config, in.Config) {
		t.Fatalf("config mismatch: %s", out.Config)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || !out.NeedUserVerification {
		t.Fatalf("unexpected coop: %+v", out)
	}
}

func TestDecodeCoopRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := decodeCoop([]byte("not-json")); err == nil {
		t.Fatal("expected decode error")
	}
}
