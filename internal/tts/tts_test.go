package tts

import (
	"context"
	"testing"
	"time"
)

// Without credentials both backends must fail fast on the error channel so
// the synthesizer can move on.

func TestElevenLabs_Stream_NoKey(t *testing.T) {
	e := NewElevenLabs("", "")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	pcmCh, errCh := e.Stream(ctx, "hello")
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected error when api key missing")
		}
	case <-pcmCh:
		t.Fatalf("no audio expected without a key")
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("timeout waiting for error")
	}
}

func TestElevenLabs_Stream_EmptyText(t *testing.T) {
	e := NewElevenLabs("key", "voice")
	pcmCh, errCh := e.Stream(context.Background(), "")
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			t.Fatalf("empty text must not error: %v", err)
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("timeout waiting for close")
	}
	if _, ok := <-pcmCh; ok {
		t.Fatalf("no audio expected for empty text")
	}
}

func TestDeepgram_Stream_NoKey(t *testing.T) {
	d := NewDeepgram("", "")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	pcmCh, errCh := d.Stream(ctx, "hello")
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected error when api key missing")
		}
	case <-pcmCh:
		t.Fatalf("no audio expected without a key")
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("timeout waiting for error")
	}
}

func TestDeepgram_DefaultModel(t *testing.T) {
	d := NewDeepgram("key", "")
	if d.model != "aura-2-thalia-en" {
		t.Fatalf("expected default model, got %q", d.model)
	}
}
