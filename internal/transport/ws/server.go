// Package ws streams tile pipeline messages to renderer clients over a
// websocket and feeds their camera updates back into the pager.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"worldpager.dev/internal/mathx"
	"worldpager.dev/internal/pager"
	"worldpager.dev/internal/tiles"
)

// Version of the client protocol.
const Version = 1

const (
	TypeHello  = "hello"
	TypeCamera = "camera"
)

// ClientMsg is everything a renderer client may send.
type ClientMsg struct {
	Type            string `json:"type"`
	ProtocolVersion int    `json:"protocol_version,omitempty"`
	// MaxQueue caps the per-client send buffer (hello only).
	MaxQueue int `json:"max_queue,omitempty"`

	// Camera update fields.
	Position       [3]float64 `json:"position,omitempty"`
	FovYDeg        float64    `json:"fovy_deg,omitempty"`
	ScreenHeightPx float64    `json:"screen_height_px,omitempty"`
	SSEThreshold   float64    `json:"sse_threshold,omitempty"`
}

type subscriber struct {
	out chan []byte
}

type Server struct {
	pager *pager.Pager
	log   *log.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewServer(p *pager.Pager, logger *log.Logger) *Server {
	return &Server{
		pager: p,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// Run drains the pipeline stream and fans messages out to subscribers.
// A slow client loses messages rather than stalling the pipeline.
func (s *Server) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.pager.Out():
			if !ok {
				return
			}
			s.broadcast(msg)
		}
	}
}

func (s *Server) broadcast(msg tiles.TilePipelineMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Printf("ws: marshal %s for %x: %v", msg.Kind, msg.Msg.Key, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub.out <- b:
		default:
			s.log.Printf("ws: dropping %s for %x: client queue full", msg.Kind, msg.Msg.Key)
		}
	}
}

func (s *Server) attach(sub *subscriber) {
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) detach(sub *subscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sub := s.handshake(conn)
		if sub == nil {
			return
		}
		s.attach(sub)
		defer s.detach(sub)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-sub.out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: camera updates steer refinement.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			var msg ClientMsg
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			if msg.Type != TypeCamera {
				continue
			}
			s.pager.Camera().Update(pager.RefinementData{
				Position:       mathx.Vec3{X: msg.Position[0], Y: msg.Position[1], Z: msg.Position[2]},
				FovYDeg:        msg.FovYDeg,
				ScreenHeightPx: msg.ScreenHeightPx,
				SSEThreshold:   msg.SSEThreshold,
			})
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) *subscriber {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	var hello ClientMsg
	if err := json.Unmarshal(raw, &hello); err != nil || hello.Type != TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"),
			time.Now().Add(time.Second))
		return nil
	}
	if hello.ProtocolVersion != Version {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"),
			time.Now().Add(time.Second))
		return nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 256
	}
	if maxQ > 4096 {
		maxQ = 4096
	}
	return &subscriber{out: make(chan []byte, maxQ)}
}
