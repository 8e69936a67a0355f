package rtc

import (
	"context"
	"encoding/binary"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"

	"github.com/chadiek/frontdesk/internal/booking"
	"github.com/chadiek/frontdesk/internal/llm"
	"github.com/chadiek/frontdesk/internal/stt"
	"github.com/chadiek/frontdesk/internal/tts"
	"github.com/chadiek/frontdesk/internal/vad"
	"github.com/chadiek/frontdesk/internal/voice"
)

// pcm16kChunkBytes batches decoded mic audio into 100ms chunks for the
// recognizer stream.
const pcm16kChunkBytes = 3200

// bargeInWindow is how recent caller voice energy must be to count as an
// interruption while the agent is speaking.
const bargeInWindow = 150 * time.Millisecond

// SessionDescription keeps webrtc types out of the transport layer.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Config carries everything a call session needs.
type Config struct {
	AssemblyAIKey   string
	CerebrasKey     string
	CerebrasModel   string
	ElevenLabsKey   string
	ElevenLabsVoice string
	DeepgramKey     string
	DeepgramModel   string
	Store           booking.Store
}

// Handler builds WebRTC peer connections and wires each one to a full voice
// session: recognizer, dialog bridge with booking flow, and paced audio out.
type Handler struct {
	cfg Config
}

func NewHandler(cfg Config) *Handler { return &Handler{cfg: cfg} }

// HandleOffer accepts an SDP offer over plain HTTP and returns an answer with
// ICE gathering complete (no trickle).
func (h *Handler) HandleOffer(ctx context.Context, offer SessionDescription) (SessionDescription, error) {
	if offer.Type != "offer" || offer.SDP == "" {
		return SessionDescription{}, errors.New("invalid offer")
	}

	pc, outTrack, err := h.newPeer("")
	if err != nil {
		return SessionDescription{}, err
	}

	callID := newCallID()
	h.attachCall(callID, pc, outTrack)

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}); err != nil {
		_ = pc.Close()
		return SessionDescription{}, err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		return SessionDescription{}, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = pc.Close()
		return SessionDescription{}, err
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		_ = pc.Close()
		return SessionDescription{}, ctx.Err()
	}
	local := pc.LocalDescription()
	if local == nil {
		_ = pc.Close()
		return SessionDescription{}, errors.New("no local description")
	}
	return SessionDescription{Type: "answer", SDP: local.SDP}, nil
}

// newPeer prepares a peer connection with default codecs and the outbound
// agent audio track.
func (h *Handler) newPeer(iceServersJSON string) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, nil, err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, ir); err != nil {
		return nil, nil, err
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithInterceptorRegistry(ir))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: parseICEServers(iceServersJSON)})
	if err != nil {
		return nil, nil, err
	}
	outTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"agent-audio", "agent",
	)
	if err != nil {
		_ = pc.Close()
		return nil, nil, err
	}
	if _, err := pc.AddTrack(outTrack); err != nil {
		_ = pc.Close()
		return nil, nil, err
	}
	return pc, outTrack, nil
}

// attachCall wires the media and session lifecycle to the peer connection.
// The session starts when the remote audio track arrives.
func (h *Handler) attachCall(callID string, pc *webrtc.PeerConnection, outTrack *webrtc.TrackLocalStaticSample) {
	var ctrlPtr atomic.Pointer[voice.Controller]

	type turn struct{ role, text string }
	var (
		turnsMu sync.Mutex
		turns   []turn
	)

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Printf("[%s] ICE state: %s", callID, state.String())
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != "control" {
			return
		}
		log.Printf("[%s] control channel opened", callID)
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			cmd := strings.TrimSpace(strings.ToLower(string(msg.Data)))
			ctrl := ctrlPtr.Load()
			if ctrl == nil {
				return
			}
			switch cmd {
			case "stop", "stop-speaking", "cancel", "barge-in":
				ctrl.OnUserSpeech()
			case "mute":
				ctrl.Mute()
			case "unmute":
				ctrl.OnUserSpeech()
			case "end", "end-call", "bye":
				ctrl.EndCall()
			}
		})
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		log.Printf("[%s] remote audio track: codec=%s", callID, remote.Codec().MimeType)

		sink, err := NewPacedOpusSink(outTrack)
		if err != nil {
			log.Printf("[%s] opus encoder error: %v", callID, err)
			return
		}

		rec := stt.NewService(h.cfg.AssemblyAIKey)
		detector := vad.New()

		synth := voice.NewSynthesizer(
			tts.NewElevenLabs(h.cfg.ElevenLabsKey, h.cfg.ElevenLabsVoice),
			tts.NewDeepgram(h.cfg.DeepgramKey, h.cfg.DeepgramModel),
		)

		conversation := llm.NewConversation(llm.NewCerebrasClient(h.cfg.CerebrasKey, h.cfg.CerebrasModel))
		planner := booking.NewPlanner(h.cfg.Store)
		bridge := booking.NewBridge(planner, conversation)

		ctrl := voice.NewController(rec, synth, bridge, sink, voice.Callbacks{
			OnState:  func(p voice.Phase) { log.Printf("[%s] phase: %s", callID, p) },
			OnNotice: func(text string) { log.Printf("[%s] notice: %s", callID, text) },
			OnTurn: func(user, assistant string) {
				turnsMu.Lock()
				turns = append(turns, turn{"USER", user})
				if assistant != "" {
					turns = append(turns, turn{"ASSISTANT", assistant})
				}
				turnsMu.Unlock()
				if assistant != "" {
					log.Printf("[%s] spoken assistant: %s", callID, assistant)
				}
			},
		})
		ctrlPtr.Store(ctrl)

		ctxSess, cancelSess := context.WithCancel(context.Background())
		if err := ctrl.Start(ctxSess); err != nil {
			log.Printf("[%s] session start error: %v", callID, err)
			cancelSess()
			sink.Close()
			return
		}

		dec, derr := opus.NewDecoder(16000, 1)
		if derr != nil {
			log.Printf("[%s] opus decoder error: %v", callID, derr)
			return
		}
		go h.readMic(callID, remote, dec, rec, detector)

		// recent caller voice while the agent speaks is a barge-in
		go func() {
			ticker := time.NewTicker(40 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctxSess.Done():
					return
				case <-ticker.C:
					if ctrl.Phase() == voice.PhaseSpeaking && detector.RecentlyDetectedVoice(bargeInWindow) {
						log.Printf("[%s] barge-in (voice energy)", callID)
						ctrl.OnUserSpeech()
					}
				}
			}
		}()

		pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
			log.Printf("[%s] peer state: %s", callID, state.String())
			switch state {
			case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
				ctrl.EndCall()
				cancelSess()
				turnsMu.Lock()
				log.Printf("[%s] call transcript (%d turns):", callID, len(turns))
				for i, t := range turns {
					log.Printf("[%s] %02d %s: %s", callID, i+1, t.role, t.text)
				}
				turnsMu.Unlock()
				time.AfterFunc(400*time.Millisecond, sink.Close)
				_ = pc.Close()
			}
		})
	})
}

// readMic decodes inbound Opus RTP to 16kHz PCM, feeds the voice detector,
// and streams 100ms chunks to the recognizer.
func (h *Handler) readMic(callID string, remote *webrtc.TrackRemote, dec *opus.Decoder, rec *stt.Service, detector *vad.Detector) {
	buf := make([]byte, 0, pcm16kChunkBytes*4)
	samples := make([]int16, 1920)
	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			log.Printf("[%s] RTP read ended: %v", callID, err)
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		n, decErr := dec.Decode(pkt.Payload, samples)
		if decErr != nil {
			continue
		}
		start := len(buf)
		buf = append(buf, make([]byte, n*2)...)
		out := buf[start:]
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(out[i*2:(i+1)*2], uint16(samples[i]))
		}
		for len(buf) >= pcm16kChunkBytes {
			chunk := buf[:pcm16kChunkBytes]
			detector.Feed(chunk)
			// ErrNotConnected is expected while capture is suspended
			// during playback; logging it would flood every reply
			if err := rec.SendPCM16KLE(chunk); err != nil && !errors.Is(err, stt.ErrNotConnected) {
				log.Printf("[%s] recognizer send error: %v", callID, err)
			}
			buf = buf[:copy(buf, buf[pcm16kChunkBytes:])]
		}
	}
}

func newCallID() string { return time.Now().Format("0102150405.000") }
