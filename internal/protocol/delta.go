package protocol

type Event map[string]interface{}

// DELTA (server -> client): everything one processed action changed for the
// receiving agent. Entities are grouped by kind ("agents", "facts", ...).
type DeltaMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Tick            uint64           `json:"tick"`
	AgentID         string           `json:"agent_id"`
	Seq             uint64           `json:"seq"`
	Full            bool             `json:"full,omitempty"`
	Entities        map[string][]any `json:"entities"`
	Events          []Event          `json:"events"`
}

// RESYNC_REQ (client -> server) asks for a full DELTA of everything the agent
// can currently see.
type ResyncReqMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
}
