// Package resources provides the harvestable node registry: trees, stone
// and berry bushes, their depletion state, and the single-holder
// reservation that keeps two villagers off the same node.
package resources

import (
	"strings"

	"github.com/talgya/hearth/internal/world"
)

// NodeID is a unique identifier for a resource node.
type NodeID uint64

// NodeType enumerates harvestable node kinds.
type NodeType uint8

const (
	NodeTree NodeType = iota
	NodeStone
	NodeBerryBush
)

// NumNodeTypes is the number of node kinds.
const NumNodeTypes = 3

// Resource ids yielded by each node kind.
const (
	ResourceWood    = "wood"
	ResourceStone   = "stone"
	ResourceBerries = "berries"
)

var nodeNames = [NumNodeTypes]string{"tree", "stone", "berry_bush"}

var nodeResources = [NumNodeTypes]string{ResourceWood, ResourceStone, ResourceBerries}

// defaultAmounts is what a freshly placed node holds when no amount is given.
var defaultAmounts = [NumNodeTypes]float64{50, 80, 20}

// String returns the lowercase node type name.
func (t NodeType) String() string {
	if int(t) < len(nodeNames) {
		return nodeNames[t]
	}
	return "unknown"
}

// Resource returns the resource id a node of this type yields.
func (t NodeType) Resource() string {
	if int(t) < len(nodeResources) {
		return nodeResources[t]
	}
	return ""
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	return int(t) < NumNodeTypes
}

// ParseNodeType maps a name such as "tree" or "BERRY_BUSH" to a NodeType.
func ParseNodeType(s string) (NodeType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range nodeNames {
		if s == name {
			return NodeType(i), true
		}
	}
	return 0, false
}

// Node is a harvestable resource node. Depleted == (Remaining <= 0).
type Node struct {
	ID         NodeID          `json:"id"`
	Type       NodeType        `json:"type"`
	Position   world.GridCoord `json:"position"`
	Resource   string          `json:"resource"`
	Remaining  float64         `json:"remaining"`
	Original   float64         `json:"original"`
	Depleted   bool            `json:"depleted"`
	ReservedBy uint64          `json:"reserved_by,omitempty"` // agent ID, 0 = free

	// DepletedFor is how long a depleted node has been dry, in seconds of
	// registry clock. Filled in on read.
	DepletedFor float64 `json:"depleted_for,omitempty"`

	depletedAt float64 // registry clock when it ran dry
}
