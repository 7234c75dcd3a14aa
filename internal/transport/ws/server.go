package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hearsay.ai/internal/metrics"
	"hearsay.ai/internal/protocol"
	"hearsay.ai/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *log.Logger

	// MaxQueue caps the per-connection outbound queue a client may ask for.
	MaxQueue int
	Metrics  *metrics.Metrics

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	s := &Server{
		world:    w,
		log:      logger,
		MaxQueue: 64,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// session is one handshaken connection.
type session struct {
	agentID  string
	encoding string
	out      chan []byte
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		s.Metrics.ConnectionOpened()
		defer s.Metrics.ConnectionClosed()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		frame := websocket.TextMessage
		if protocol.IsBinary(sess.encoding) {
			frame = websocket.BinaryMessage
		}

		// Writer goroutine.
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-sess.out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(frame, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		s.readLoop(conn, sess)
		cancel()
		wg.Wait()

		// Cleanup.
		s.world.Leave() <- world.LeaveRequest{AgentID: sess.agentID, Out: sess.out}
	}
}

func (s *Server) readLoop(conn *websocket.Conn, sess *session) {
	minInterval := time.Duration(s.world.Config().MinActionIntervalMs) * time.Millisecond
	var lastAct time.Time
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			s.reply(sess, protocol.NewError(protocol.ErrProtoBadRequest, "bad json", ""))
			continue
		}
		if base.ProtocolVersion != protocol.Version {
			s.reply(sess, protocol.NewError(protocol.ErrProtoBadRequest, "bad protocol_version", ""))
			continue
		}
		switch base.Type {
		case protocol.TypeAct:
			if err := protocol.ValidateAct(msg); err != nil {
				s.reply(sess, protocol.NewError(protocol.ErrProtoBadRequest, err.Error(), ""))
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				s.reply(sess, protocol.NewError(protocol.ErrProtoBadRequest, err.Error(), ""))
				continue
			}
			now := time.Now()
			if minInterval > 0 && !lastAct.IsZero() && now.Sub(lastAct) < minInterval {
				for _, inst := range act.Instants {
					s.reply(sess, protocol.NewError(protocol.ErrRateLimit, "actions arrive faster than min_action_interval_ms", inst.ID))
				}
				continue
			}
			lastAct = now
			act.AgentID = sess.agentID
			s.world.Inbox() <- world.ActionEnvelope{AgentID: sess.agentID, Act: act}
		case protocol.TypeResyncReq:
			s.world.Resync() <- sess.agentID
		default:
			s.reply(sess, protocol.NewError(protocol.ErrProtoBadRequest, "unexpected message type "+base.Type, ""))
		}
	}
}

// reply queues a transport-level message behind any pending deltas. A full
// queue drops it.
func (s *Server) reply(sess *session, v any) {
	b, err := protocol.Marshal(sess.encoding, v)
	if err != nil {
		s.logf("encode reply for %s: %v", sess.agentID, err)
		return
	}
	select {
	case sess.out <- b:
	default:
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return nil
	}
	if err := protocol.ValidateHello(msg); err != nil {
		closeWith(conn, "bad HELLO: "+err.Error())
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return nil
	}
	enc, err := protocol.NormalizeEncoding(hello.Capabilities.Encoding)
	if err != nil {
		closeWith(conn, err.Error())
		return nil
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if s.MaxQueue > 0 && maxQ > s.MaxQueue {
		maxQ = s.MaxQueue
	}
	out := make(chan []byte, maxQ)

	// Optional: resume an existing agent (reconnect).
	resumeToken := ""
	if hello.Auth != nil {
		resumeToken = strings.TrimSpace(hello.Auth.ResumeToken)
	}

	var resp world.JoinResponse
	if resumeToken != "" {
		respCh := make(chan world.JoinResponse, 1)
		s.world.Attach() <- world.AttachRequest{ResumeToken: resumeToken, Encoding: enc, Out: out, Resp: respCh}
		resp = <-respCh
	}
	resumed := resp.Welcome.AgentID != ""
	if resp.Welcome.AgentID == "" {
		// Fresh join.
		respCh := make(chan world.JoinResponse, 1)
		s.world.Join() <- world.JoinRequest{Name: hello.AgentName, Encoding: enc, Out: out, Resp: respCh}
		resp = <-respCh
	}
	if resp.Welcome.AgentID == "" {
		closeWith(conn, "join failed")
		return nil
	}

	// WELCOME always travels as JSON text.
	b, err := json.Marshal(resp.Welcome)
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		err = conn.WriteMessage(websocket.TextMessage, b)
	}
	if err != nil {
		s.world.Leave() <- world.LeaveRequest{AgentID: resp.Welcome.AgentID, Out: out}
		return nil
	}
	s.logf("agent %s connected (encoding=%s resumed=%v)", resp.Welcome.AgentID, enc, resumed)
	return &session{agentID: resp.Welcome.AgentID, encoding: enc, out: out}
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}
