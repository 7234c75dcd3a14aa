package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello     = "HELLO"
	TypeWelcome   = "WELCOME"
	TypeAct       = "ACT"
	TypeDelta     = "DELTA"
	TypeResyncReq = "RESYNC_REQ"
	TypeError     = "ERROR"
)

// Payload encodings a client may ask for in HELLO.
const (
	EncodingJSON = "json"
	EncodingCBOR = "cbor"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
