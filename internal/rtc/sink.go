package rtc

import (
	"sync"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

const (
	sinkSampleRate  = 48000
	sinkFrame       = 960 // 20ms at 48kHz
	sinkFrameWindow = 20 * time.Millisecond
	tailFrames      = 10 // ~200ms of silence after each reply
)

// sampleWriter is the slice of TrackLocalStaticSample the sink needs.
type sampleWriter interface {
	WriteSample(s media.Sample) error
}

// PacedOpusSink encodes 48kHz mono PCM into Opus frames and writes them to a
// WebRTC track at a steady 20ms cadence. Reset drops every queued frame so a
// barge-in silences the line within one pacer tick.
type PacedOpusSink struct {
	enc   *opus.Encoder
	track sampleWriter

	mu      sync.Mutex
	pending []int16
	frames  chan []byte
	stopCh  chan struct{}
	stopped bool
}

func NewPacedOpusSink(track *webrtc.TrackLocalStaticSample) (*PacedOpusSink, error) {
	enc, err := opus.NewEncoder(sinkSampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	s := &PacedOpusSink{
		enc:    enc,
		track:  track,
		frames: make(chan []byte, 512),
		stopCh: make(chan struct{}),
	}
	go s.pace()
	return s, nil
}

// WritePCM buffers little-endian 16-bit 48kHz mono samples, encoding and
// queueing every complete frame.
func (s *PacedOpusSink) WritePCM(pcm []byte) {
	if len(pcm) < 2 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		s.pending = append(s.pending, int16(uint16(pcm[2*i])|uint16(pcm[2*i+1])<<8))
	}

	buf := make([]byte, 4000)
	for len(s.pending) >= sinkFrame {
		s.encodeFrame(s.pending[:sinkFrame], buf)
		s.pending = s.pending[:copy(s.pending, s.pending[sinkFrame:])]
	}
}

// FlushTail zero-pads the last partial frame and appends a short silence tail
// so playback does not clip the end of the reply.
func (s *PacedOpusSink) FlushTail() {
	s.mu.Lock()
	buf := make([]byte, 4000)
	if len(s.pending) > 0 {
		frame := make([]int16, sinkFrame)
		copy(frame, s.pending)
		s.encodeFrame(frame, buf)
		s.pending = s.pending[:0]
	}
	s.mu.Unlock()

	silence := make([]int16, sinkFrame)
	for i := 0; i < tailFrames; i++ {
		s.mu.Lock()
		s.encodeFrame(silence, buf)
		s.mu.Unlock()
	}
}

// Reset drains queued frames and discards buffered PCM for immediate cutoff.
func (s *PacedOpusSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case <-s.frames:
		default:
			s.pending = s.pending[:0]
			return
		}
	}
}

// Close stops the pacer goroutine.
func (s *PacedOpusSink) Close() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stopCh)
	}
	s.mu.Unlock()
}

// encodeFrame encodes one full frame and queues it; callers hold s.mu.
func (s *PacedOpusSink) encodeFrame(frame []int16, buf []byte) {
	n, err := s.enc.Encode(frame, buf)
	if err != nil || n == 0 {
		return
	}
	pkt := make([]byte, n)
	copy(pkt, buf[:n])
	for {
		select {
		case <-s.stopCh:
			return
		case s.frames <- pkt:
			return
		default:
		}
		// queue full: drop the oldest frame to stay realtime
		select {
		case <-s.frames:
		default:
		}
	}
}

func (s *PacedOpusSink) pace() {
	ticker := time.NewTicker(sinkFrameWindow)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			select {
			case frame := <-s.frames:
				_ = s.track.WriteSample(media.Sample{Data: frame, Duration: sinkFrameWindow})
			default:
			}
		}
	}
}
