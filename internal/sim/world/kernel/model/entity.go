package model

import "hearsay.ai/internal/sim/world/kernel/kind"

// Entity is the capability every addressable world object exposes.
type Entity interface {
	ID() string
	Kind() kind.Kind
	Serialize(ctx SerializeContext) any
}

// FactViewer maps master facts onto a viewer's derived copies.
type FactViewer interface {
	CopyIDFor(masterID, agentID string) string
}

// SerializeContext carries who an entity is being serialized for.
type SerializeContext struct {
	// Viewer is the receiving agent. Empty means an internal/full view.
	Viewer string
	// Remote is set when the payload leaves the process for a client.
	Remote bool
	Facts  FactViewer
}

// IsOwner reports whether the viewer may see private fields of ownerID.
func (c SerializeContext) IsOwner(ownerID string) bool {
	return c.Viewer == "" || c.Viewer == ownerID
}

// RefOf returns the reference form of e.
func RefOf(e Entity) kind.Ref {
	return kind.Ref{Kind: e.Kind(), ID: e.ID()}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}
