package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	flag "github.com/spf13/pflag"

	"hearsay.ai/internal/protocol"
)

// bot wanders between rooms, strikes up conversations with whoever it meets
// and passes on what it has heard.
type bot struct {
	conn   *websocket.Conn
	logger *log.Logger
	enc    string
	rng    *rand.Rand

	id           string
	room         string
	conversation string
	adjacent     map[string][]string
	occupants    map[string][]string
	facts        []string
	requests     []string
	seq          int
}

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.StringP("name", "n", "bot", "agent name")
		encoding = flag.String("encoding", protocol.EncodingJSON, "delta encoding (json|cbor)")
		every    = flag.Duration("every", 2*time.Second, "time between actions")
		resume   = flag.String("resume", "", "resume token from an earlier session")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       *name,
		Capabilities:    protocol.HelloCapabilities{Encoding: *encoding, MaxQueue: 16},
	}
	if *resume != "" {
		hello.Auth = &protocol.HelloAuth{ResumeToken: *resume}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	logger.Printf("WELCOME agent_id=%s world=%s resume_token=%s", welcome.AgentID, welcome.WorldParams.WorldID, welcome.ResumeToken)

	b := &bot{
		conn:      conn,
		logger:    logger,
		enc:       welcome.Encoding,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		id:        welcome.AgentID,
		adjacent:  map[string][]string{},
		occupants: map[string][]string{},
	}

	msgs := make(chan []byte, 64)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			msgs <- msg
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	ticker := time.NewTicker(*every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			b.handle(msg)
		case <-ticker.C:
			b.act()
		}
	}
}

func (b *bot) handle(raw []byte) {
	var msg struct {
		Type    string           `json:"type" cbor:"type"`
		Code    string           `json:"code" cbor:"code"`
		Message string           `json:"message" cbor:"message"`
		Events  []map[string]any `json:"events" cbor:"events"`
		Ents    map[string][]any `json:"entities" cbor:"entities"`
	}
	if err := protocol.Unmarshal(b.enc, raw, &msg); err != nil {
		b.logger.Printf("decode: %v", err)
		return
	}
	switch msg.Type {
	case protocol.TypeError:
		b.logger.Printf("ERROR %s: %s", msg.Code, msg.Message)
	case protocol.TypeDelta:
		for _, e := range msg.Ents["agents"] {
			v := asMap(e)
			if v["id"] == b.id {
				b.room, _ = v["room"].(string)
				b.conversation, _ = v["conversation"].(string)
			}
		}
		for _, e := range msg.Ents["rooms"] {
			v := asMap(e)
			id, _ := v["id"].(string)
			b.adjacent[id] = stringList(v["adjacent"])
			b.occupants[id] = stringList(v["occupants"])
		}
		for _, e := range msg.Ents["facts"] {
			v := asMap(e)
			if id, _ := v["id"].(string); id != "" && v["query"] != true {
				b.facts = append(b.facts, id)
			}
		}
		for _, ev := range msg.Events {
			b.event(ev)
		}
	}
}

func (b *bot) event(ev map[string]any) {
	switch ev["type"] {
	case "CONVERSE_REQUEST":
		if from, _ := ev["from"].(string); from != "" {
			b.requests = append(b.requests, from)
		}
	case "ACTION_RESULT":
		if ev["ok"] != true {
			b.logger.Printf("%v failed: %v %v", ev["ref"], ev["code"], ev["message"])
		}
	default:
		out, _ := json.Marshal(ev)
		b.logger.Printf("event %s", out)
	}
}

func (b *bot) act() {
	if b.room == "" {
		return
	}
	switch {
	case len(b.requests) > 0:
		from := b.requests[0]
		b.requests = b.requests[1:]
		b.send(protocol.InstantReq{Type: protocol.InstantConverseAccept, To: from})
	case b.conversation != "" && len(b.facts) > 0:
		to := b.someoneElse()
		if to == "" {
			b.send(protocol.InstantReq{Type: protocol.InstantLeaveConversation})
			return
		}
		fact := b.facts[b.rng.Intn(len(b.facts))]
		b.send(protocol.InstantReq{Type: protocol.InstantTell, To: to, FactID: fact})
	case b.conversation == "" && b.someoneElse() != "" && b.rng.Intn(2) == 0:
		b.send(protocol.InstantReq{Type: protocol.InstantConverseRequest, To: b.someoneElse()})
	default:
		adj := b.adjacent[b.room]
		if len(adj) == 0 {
			return
		}
		b.send(protocol.InstantReq{Type: protocol.InstantMove, Room: adj[b.rng.Intn(len(adj))]})
	}
}

func (b *bot) someoneElse() string {
	others := make([]string, 0, len(b.occupants[b.room]))
	for _, id := range b.occupants[b.room] {
		if id != b.id {
			others = append(others, id)
		}
	}
	if len(others) == 0 {
		return ""
	}
	sort.Strings(others)
	return others[0]
}

func (b *bot) send(inst protocol.InstantReq) {
	b.seq++
	inst.ID = fmt.Sprintf("I_%d", b.seq)
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		AgentID:         b.id,
		Instants:        []protocol.InstantReq{inst},
	}
	if err := b.conn.WriteJSON(act); err != nil {
		b.logger.Printf("send %s: %v", inst.Type, err)
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func stringList(v any) []string {
	arr, _ := v.([]any)
	out := make([]string, 0, len(arr))
	for _, x := range arr {
		if s, ok := x.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
