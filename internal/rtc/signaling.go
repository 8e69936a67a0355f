package rtc

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

// signalMessage is the wire format for browser signaling.
// Types: "auth", "offer", "answer", "candidate", "ice-complete", "bye", "error".
type signalMessage struct {
	Type     string `json:"type"`
	Password string `json:"password,omitempty"`
	SDP      string `json:"sdp,omitempty"`

	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// widget embeds run on arbitrary customer origins
		return true
	},
}

// ServeWebSocket upgrades the request and performs offer/answer plus trickle
// ICE signaling, then runs the call until the peer connection closes.
func (h *Handler) ServeWebSocket(w http.ResponseWriter, r *http.Request, iceServersJSON, authPassword string) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	if authPassword != "" && !authOK(r, authPassword) {
		// allow a first-frame auth message instead
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil || mt != websocket.TextMessage {
			writeError(conn, errors.New("auth required"))
			return
		}
		var m signalMessage
		if json.Unmarshal(data, &m) != nil || strings.ToLower(m.Type) != "auth" || m.Password != authPassword {
			writeError(conn, errors.New("unauthorized"))
			return
		}
	}

	offerSDP, ok := readOffer(conn)
	if !ok {
		return
	}

	pc, outTrack, err := h.newPeer(iceServersJSON)
	if err != nil {
		writeError(conn, err)
		return
	}
	defer func() { _ = pc.Close() }()

	callID := newCallID()

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			_ = conn.WriteJSON(signalMessage{Type: "ice-complete"})
			return
		}
		init := c.ToJSON()
		_ = conn.WriteJSON(signalMessage{
			Type:          "candidate",
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})

	// remote trickle candidates and hangup
	go func() {
		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			var m signalMessage
			if json.Unmarshal(data, &m) != nil {
				continue
			}
			switch strings.ToLower(m.Type) {
			case "candidate":
				if m.Candidate == "" {
					continue
				}
				_ = pc.AddICECandidate(webrtc.ICECandidateInit{
					Candidate:     m.Candidate,
					SDPMid:        m.SDPMid,
					SDPMLineIndex: m.SDPMLineIndex,
				})
			case "bye":
				_ = pc.Close()
				return
			}
		}
	}()

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}); err != nil {
		writeError(conn, err)
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		writeError(conn, err)
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		writeError(conn, err)
		return
	}
	local := pc.LocalDescription()
	if local == nil {
		writeError(conn, errors.New("no local description"))
		return
	}
	if err := conn.WriteJSON(signalMessage{Type: "answer", SDP: local.SDP}); err != nil {
		log.Printf("[%s] ws write answer error: %v", callID, err)
		return
	}

	h.attachCall(callID, pc, outTrack)

	for {
		time.Sleep(2 * time.Second)
		switch pc.ConnectionState() {
		case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
			return
		}
	}
}

func readOffer(conn *websocket.Conn) (string, bool) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("ws read error before offer: %v", err)
			return "", false
		}
		if mt != websocket.TextMessage {
			continue
		}
		var m signalMessage
		if json.Unmarshal(data, &m) != nil {
			continue
		}
		switch strings.ToLower(m.Type) {
		case "offer":
			if m.SDP != "" {
				return m.SDP, true
			}
		case "bye":
			return "", false
		}
	}
}

func authOK(r *http.Request, password string) bool {
	if r == nil || password == "" {
		return false
	}
	if q := r.URL.Query().Get("password"); q == password {
		return true
	}
	ah := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(ah), "bearer ") && strings.TrimSpace(ah[7:]) == password {
		return true
	}
	return r.Header.Get("X-Auth-Token") == password && password != ""
}

func writeError(conn *websocket.Conn, err error) {
	_ = conn.WriteJSON(map[string]string{"type": "error", "error": err.Error()})
}

func parseICEServers(iceJSON string) []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if err := json.Unmarshal([]byte(iceJSON), &servers); err == nil && len(servers) > 0 {
		return servers
	}
	return []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
}
