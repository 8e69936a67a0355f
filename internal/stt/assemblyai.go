package stt

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chadiek/frontdesk/internal/voice"
)

// ErrNotConnected reports audio sent while the socket is down. This is
// routine while capture is suspended during playback, so callers feeding
// a continuous mic stream should not treat it as noteworthy.
var ErrNotConnected = errors.New("recognizer not connected")

// Service streams PCM audio to AssemblyAI's realtime endpoint and publishes
// transcripts as recognizer events. It implements voice.Recognizer: the event
// channel stays valid across Start/Stop cycles, and a provider-side silence
// timeout simply surfaces as EventEnd so the capture layer can reconnect.
type Service struct {
	apiKey string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	stopCh    chan struct{}
	audioCh   chan []byte

	events chan voice.RecognizerEvent
}

// NewService creates a recognizer for one call.
func NewService(apiKey string) *Service {
	return &Service{
		apiKey: apiKey,
		events: make(chan voice.RecognizerEvent, 128),
	}
}

// Events returns the recognizer event stream.
func (s *Service) Events() <-chan voice.RecognizerEvent { return s.events }

// Start dials the streaming endpoint. A missing key is reported as an
// explicit configuration error rather than a silent no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	if s.apiKey == "" {
		return fmt.Errorf("speech recognition unavailable: AssemblyAI API key not configured")
	}

	params := url.Values{}
	params.Set("sample_rate", "16000")
	params.Set("format_turns", "false")
	params.Set("encoding", "pcm_s16le")
	wsURL := fmt.Sprintf("wss://streaming.assemblyai.com/v3/ws?%s", params.Encode())

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.Dial(wsURL, map[string][]string{"Authorization": {s.apiKey}})
	if err != nil {
		if resp != nil {
			log.Printf("assemblyai: connect failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("connect to AssemblyAI: %w", err)
	}

	s.conn = conn
	s.connected = true
	s.stopCh = make(chan struct{})
	s.audioCh = make(chan []byte, 1000)

	go s.readLoop(conn, s.stopCh)
	go s.writeLoop(conn, s.stopCh, s.audioCh)
	return nil
}

// Stop terminates the current stream. The event channel stays open so the
// service can be started again for the same call.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return
	}
	close(s.stopCh)
	if s.conn != nil {
		_ = s.conn.WriteJSON(map[string]string{"type": "Terminate"})
		_ = s.conn.Close()
	}
	s.conn = nil
	s.connected = false
}

// SendPCM16KLE queues 16kHz little-endian mono PCM for transcription. Audio
// is dropped rather than blocking when the queue is full.
func (s *Service) SendPCM16KLE(pcm []byte) error {
	s.mu.Lock()
	connected, ch := s.connected, s.audioCh
	s.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	// callers reuse their buffers; queue a copy
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	select {
	case ch <- buf:
	default:
		log.Println("assemblyai: audio buffer full, dropping packet")
	}
	return nil
}

func (s *Service) readLoop(conn *websocket.Conn, stop chan struct{}) {
	defer s.emit(voice.RecognizerEvent{Kind: voice.EventEnd})
	for {
		select {
		case <-stop:
			return
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-stop: // intentional shutdown, not an error
			default:
				log.Printf("assemblyai: read error: %v", err)
				s.emit(voice.RecognizerEvent{Kind: voice.EventError, Code: "network"})
			}
			return
		}
		s.handleMessage(message)
	}
}

func (s *Service) writeLoop(conn *websocket.Conn, stop chan struct{}, audio chan []byte) {
	for {
		select {
		case <-stop:
			return
		case pcm := <-audio:
			if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				log.Printf("assemblyai: audio send error: %v", err)
				return
			}
		}
	}
}

func (s *Service) emit(ev voice.RecognizerEvent) {
	select {
	case s.events <- ev:
	default:
		// never block the socket goroutines on a slow consumer
	}
}
