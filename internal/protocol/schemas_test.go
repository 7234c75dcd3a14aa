package protocol_test

import (
	"testing"

	"hearsay.ai/internal/protocol"
)

func TestValidateAct(t *testing.T) {
	good := []string{
		`{"type":"ACT","protocol_version":"1.0","tick":3,"agent_id":"A1",
		  "instants":[{"id":"I1","type":"MOVE","room":"R2"}]}`,
		`{"type":"ACT","protocol_version":"1.0","instants":[
		  {"id":"I2","type":"TELL","to":"A2","fact_id":"F000004","hide":["time"]},
		  {"id":"I3","type":"TRADE_CURRENCY","trade_id":"TR000001","delta":-5},
		  {"id":"I4","type":"TRADE_READY","trade_id":"TR000001","ready":false},
		  {"id":"I5","type":"ASK","shape":"MOVE","known":{"agent":"A3"}}]}`,
	}
	for i, raw := range good {
		if err := protocol.ValidateAct([]byte(raw)); err != nil {
			t.Fatalf("good[%d]: %v", i, err)
		}
	}

	bad := map[string]string{
		"missing room":     `{"type":"ACT","protocol_version":"1.0","instants":[{"id":"I1","type":"MOVE"}]}`,
		"unknown instant":  `{"type":"ACT","protocol_version":"1.0","instants":[{"id":"I1","type":"BUILD"}]}`,
		"wrong type":       `{"type":"OBS","protocol_version":"1.0","instants":[]}`,
		"non-integer":      `{"type":"ACT","protocol_version":"1.0","instants":[{"id":"I1","type":"TRADE_CURRENCY","trade_id":"T","delta":1.5}]}`,
		"answer w/o fact":  `{"type":"ACT","protocol_version":"1.0","instants":[{"id":"I1","type":"TRADE_OFFER_ANSWER","trade_id":"T","question_id":"F1"}]}`,
		"not json":         `{"type":`,
		"missing instants": `{"type":"ACT","protocol_version":"1.0"}`,
	}
	for name, raw := range bad {
		if err := protocol.ValidateAct([]byte(raw)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestValidateHello(t *testing.T) {
	if err := protocol.ValidateHello([]byte(`{"type":"HELLO","protocol_version":"1.0","agent_name":"bot","capabilities":{"encoding":"cbor","max_queue":8}}`)); err != nil {
		t.Fatalf("hello: %v", err)
	}
	if err := protocol.ValidateHello([]byte(`{"type":"HELLO","protocol_version":"1.0","agent_name":"bot","capabilities":{"encoding":"xml"}}`)); err == nil {
		t.Fatalf("expected unsupported encoding rejected")
	}
}

func TestMarshal_CBORIsDeterministic(t *testing.T) {
	msg := protocol.DeltaMsg{
		Type:            protocol.TypeDelta,
		ProtocolVersion: protocol.Version,
		Tick:            7,
		AgentID:         "A1",
		Entities: map[string][]any{
			"rooms":  {map[string]any{"id": "R1", "name": "Hall"}},
			"agents": {map[string]any{"id": "A1", "currency": 10}},
		},
		Events: []protocol.Event{{"type": "ACTION_RESULT", "ok": true}},
	}
	a, err := protocol.Marshal(protocol.EncodingCBOR, msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for i := 0; i < 5; i++ {
		b, _ := protocol.Marshal(protocol.EncodingCBOR, msg)
		if string(a) != string(b) {
			t.Fatalf("cbor output differs between runs")
		}
	}
	var back map[string]any
	if err := protocol.Unmarshal(protocol.EncodingCBOR, a, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back["type"] != protocol.TypeDelta || back["agent_id"] != "A1" {
		t.Fatalf("decoded=%v", back)
	}
	if !protocol.IsBinary(protocol.EncodingCBOR) || protocol.IsBinary(protocol.EncodingJSON) {
		t.Fatalf("IsBinary mismatch")
	}
}

func TestNormalizeEncoding(t *testing.T) {
	if enc, err := protocol.NormalizeEncoding(""); err != nil || enc != protocol.EncodingJSON {
		t.Fatalf("default encoding=%q err=%v", enc, err)
	}
	if _, err := protocol.NormalizeEncoding("msgpack"); err == nil {
		t.Fatalf("expected unsupported encoding error")
	}
}

func TestInstantReq_ReadyDefaultsTrue(t *testing.T) {
	var r protocol.InstantReq
	if !r.ReadyOrDefault() {
		t.Fatalf("omitted ready should mean true")
	}
	f := false
	r.Ready = &f
	if r.ReadyOrDefault() {
		t.Fatalf("explicit false ignored")
	}
}
