package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	AgentName       string            `json:"agent_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
	Auth            *HelloAuth        `json:"auth,omitempty"`
}

type HelloCapabilities struct {
	// Encoding selects the DELTA payload encoding: "json" (default) or "cbor".
	Encoding string `json:"encoding,omitempty"`
	MaxQueue int    `json:"max_queue,omitempty"`
}

type HelloAuth struct {
	ResumeToken string `json:"resume_token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	AgentID         string      `json:"agent_id"`
	ResumeToken     string      `json:"resume_token"`
	Encoding        string      `json:"encoding"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	WorldID             string `json:"world_id"`
	TickRateHz          int    `json:"tick_rate_hz"`
	MinActionIntervalMs int    `json:"min_action_interval_ms"`
	StartingCurrency    int64  `json:"starting_currency"`
}

// ERROR (server -> client) for requests rejected before reaching the world.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
	Ref             string `json:"ref,omitempty"`
}

func NewError(code, message, ref string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: message, Ref: ref}
}
