package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ElevenLabs streams PCM 48kHz audio over the HTTP streaming endpoint. It is
// the primary synthesis backend: higher quality, networked, and the one the
// sticky-fallback logic abandons first.
type ElevenLabs struct {
	APIKey  string
	VoiceID string
	Client  *http.Client
}

// NewElevenLabs constructs the primary backend.
func NewElevenLabs(apiKey, voiceID string) *ElevenLabs {
	return &ElevenLabs{APIKey: apiKey, VoiceID: voiceID, Client: &http.Client{}}
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

// Stream requests synthesis and forwards body chunks as they arrive. Any
// non-2xx status, transport error, or empty body surfaces on the error
// channel so the caller can engage the fallback backend.
func (e *ElevenLabs) Stream(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	pcmCh := make(chan []byte, 4096)
	errCh := make(chan error, 1)
	go func() {
		defer close(pcmCh)
		defer close(errCh)
		if e.APIKey == "" || e.VoiceID == "" {
			errCh <- fmt.Errorf("elevenlabs: api key or voice id missing")
			return
		}
		if text == "" {
			return
		}
		if err := e.httpStream(ctx, text, pcmCh); err != nil {
			errCh <- err
		}
	}()
	return pcmCh, errCh
}

func (e *ElevenLabs) httpStream(ctx context.Context, text string, pcmCh chan<- []byte) error {
	u := url.URL{
		Scheme: "https",
		Host:   "api.elevenlabs.io",
		Path:   "/v1/text-to-speech/" + e.VoiceID + "/stream",
	}
	q := u.Query()
	q.Set("model_id", "eleven_flash_v2_5")
	q.Set("output_format", "pcm_48000")
	q.Set("optimize_streaming_latency", "2")
	u.RawQuery = q.Encode()

	body := map[string]any{
		"model_id": "eleven_flash_v2_5",
		"text":     text,
		"voice_settings": map[string]any{
			"stability":         0.4,
			"similarity_boost":  0.7,
			"style":             0.0,
			"use_speaker_boost": true,
		},
		"generation_config": map[string]any{
			"chunk_length_schedule": []int{80, 120, 160, 200},
		},
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs: stream request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("elevenlabs: status=%d body=%s", resp.StatusCode, string(b))
	}

	chunk := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			out := make([]byte, n)
			copy(out, chunk[:n])
			select {
			case pcmCh <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return fmt.Errorf("elevenlabs: stream read: %w", rerr)
		}
	}
}
