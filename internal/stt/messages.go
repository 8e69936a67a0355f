package stt

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/chadiek/frontdesk/internal/voice"
)

// AssemblyAI v3 streaming message shapes.

type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type turnMessage struct {
	Type          string `json:"type"`
	Transcript    string `json:"transcript"`
	EndOfTurn     bool   `json:"end_of_turn"`
	TurnFormatted bool   `json:"turn_is_formatted"`
}

type terminationMessage struct {
	Type                   string  `json:"type"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (s *Service) handleMessage(message []byte) {
	var base map[string]interface{}
	if err := json.Unmarshal(message, &base); err != nil {
		log.Printf("assemblyai: bad message: %v", err)
		return
	}
	msgType, _ := base["type"].(string)
	switch msgType {
	case "Begin":
		var msg beginMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("assemblyai: session began id=%s expires=%s", msg.ID, time.Unix(msg.ExpiresAt, 0).Format(time.RFC3339))
	case "Turn":
		var msg turnMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		if msg.Transcript == "" {
			return
		}
		s.emit(voice.RecognizerEvent{
			Kind:  voice.EventTranscript,
			Text:  msg.Transcript,
			Final: msg.EndOfTurn,
		})
	case "Termination":
		var msg terminationMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("assemblyai: session terminated audio=%.2fs session=%.2fs", msg.AudioDurationSeconds, msg.SessionDurationSeconds)
	case "Error":
		var msg errorMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("assemblyai: error: %s", msg.Error)
		s.emit(voice.RecognizerEvent{Kind: voice.EventError, Code: errorCode(msg.Error)})
	default:
		log.Printf("assemblyai: unknown message type %q", msgType)
	}
}

// errorCode maps provider error text onto the small code set the voice layer
// understands. Silence-related errors are benign.
func errorCode(providerMsg string) string {
	lower := strings.ToLower(providerMsg)
	if strings.Contains(lower, "no speech") || strings.Contains(lower, "no audio") {
		return "no-speech"
	}
	return "provider"
}
