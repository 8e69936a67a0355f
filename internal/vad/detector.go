package vad

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// defaultVoiceRMS is tuned conservatively for 16-bit speech at normal call
// levels; lower it for quiet far-field microphones.
const defaultVoiceRMS = 250.0

// smoothFrames is the size of the majority-vote window over per-buffer
// verdicts, absorbing single-frame spikes (clicks, breaths).
const smoothFrames = 4

// Detector tracks voice energy in inbound 16kHz PCM16LE audio. It drives
// barge-in: while the agent is speaking, recent voice energy from the caller
// means they want the floor.
type Detector struct {
	threshold float64

	mu        sync.Mutex
	window    []bool
	lastVoice time.Time
}

// New creates a detector with the default energy threshold.
func New() *Detector { return &Detector{threshold: defaultVoiceRMS} }

// Feed analyzes one PCM buffer. Large buffers are scanned sparsely to keep
// this cheap enough for the RTP read path.
func (d *Detector) Feed(pcm []byte) {
	const minSamples = 160 // 10ms at 16kHz
	if len(pcm) < minSamples*2 {
		return
	}
	step := 2
	if len(pcm) > 3200 {
		step = 4
	}
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 * step {
		v := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sumSquares += float64(v) * float64(v)
		count++
	}
	if count == 0 {
		return
	}
	rms := math.Sqrt(sumSquares / float64(count))

	d.mu.Lock()
	d.window = append(d.window, rms >= d.threshold)
	if len(d.window) > smoothFrames {
		d.window = d.window[len(d.window)-smoothFrames:]
	}
	voiced := 0
	for _, v := range d.window {
		if v {
			voiced++
		}
	}
	if voiced*2 >= len(d.window) && rms >= d.threshold {
		d.lastVoice = time.Now()
	}
	d.mu.Unlock()
}

// RecentlyDetectedVoice reports whether voice energy was observed within the
// given window.
func (d *Detector) RecentlyDetectedVoice(window time.Duration) bool {
	d.mu.Lock()
	last := d.lastVoice
	d.mu.Unlock()
	if last.IsZero() {
		return false
	}
	return time.Since(last) <= window
}

// Reset clears detection state (used when a new call takes over the line).
func (d *Detector) Reset() {
	d.mu.Lock()
	d.window = d.window[:0]
	d.lastVoice = time.Time{}
	d.mu.Unlock()
}
