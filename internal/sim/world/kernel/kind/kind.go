package kind

// Kind identifies an addressable entity variant. It is fixed when the entity is
// constructed and doubles as the bucket key in delta payloads.
type Kind uint8

const (
	Unknown Kind = iota
	Agent
	Room
	Item
	Faction
	Conversation
	Trade
	Fact
)

var bucketNames = [...]string{
	Unknown:      "",
	Agent:        "agents",
	Room:         "rooms",
	Item:         "items",
	Faction:      "factions",
	Conversation: "conversations",
	Trade:        "trades",
	Fact:         "facts",
}

var names = [...]string{
	Unknown:      "UNKNOWN",
	Agent:        "AGENT",
	Room:         "ROOM",
	Item:         "ITEM",
	Faction:      "FACTION",
	Conversation: "CONVERSATION",
	Trade:        "TRADE",
	Fact:         "FACT",
}

func (k Kind) String() string {
	if int(k) >= len(names) {
		return names[Unknown]
	}
	return names[k]
}

// Bucket is the payload key entities of this kind are grouped under.
func (k Kind) Bucket() string {
	if int(k) >= len(bucketNames) {
		return ""
	}
	return bucketNames[k]
}

// All lists the addressable kinds in payload order.
func All() []Kind {
	return []Kind{Agent, Room, Item, Faction, Conversation, Trade, Fact}
}

// Ref is an opaque reference to an entity of a given kind.
type Ref struct {
	Kind Kind
	ID   string
}

func (r Ref) IsZero() bool { return r.Kind == Unknown || r.ID == "" }
