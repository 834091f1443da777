package jobs

import (
	"sort"

	"github.com/talgya/hearth/internal/economy"
	"github.com/talgya/hearth/internal/resources"
)

// Profile describes what a job produces and where it works.
type Profile struct {
	Name     string
	Resource string

	// Node jobs harvest resource nodes; the rest work at their workplace.
	NodeBased bool
	Node      resources.NodeType

	// Input is drawn from the pool one-for-one by workplace jobs. Empty
	// means the job needs nothing.
	Input string

	// Amount gathered per work swing.
	Amount float64
}

// Job names.
const (
	Lumberjack = "lumberjack"
	Miner      = "miner"
	Gatherer   = "gatherer"
	Farmer     = "farmer"
	Miller     = "miller"
	Baker      = "baker"
	Brewer     = "brewer"
	Smoker     = "smoker"
	Blacksmith = "blacksmith"
	Engineer   = "engineer"
	Ironworker = "ironworker"
)

var profiles = map[string]Profile{
	Lumberjack: {Resource: economy.Wood, NodeBased: true, Node: resources.NodeTree, Amount: 5},
	Miner:      {Resource: economy.Stone, NodeBased: true, Node: resources.NodeStone, Amount: 4},
	Gatherer:   {Resource: economy.Berries, NodeBased: true, Node: resources.NodeBerryBush, Amount: 3},
	Farmer:     {Resource: economy.Wheat, Amount: 2},
	Miller:     {Resource: economy.Flour, Input: economy.Wheat, Amount: 2},
	Baker:      {Resource: economy.Bread, Input: economy.Flour, Amount: 2},
	Brewer:     {Resource: economy.Ale, Input: economy.Wheat, Amount: 1},
	Smoker:     {Resource: economy.SmokedMeat, Input: economy.Meat, Amount: 1},
	Blacksmith: {Resource: economy.Tools, Input: economy.Iron, Amount: 1},
	Engineer:   {Resource: economy.Bricks, Input: economy.Stone, Amount: 1},
	Ironworker: {Resource: economy.Iron, Amount: 1},
}

func init() {
	for name, s := range profiles {
		s.Name = name
		profiles[name] = s
	}
}

// Lookup returns the profile of a job.
func Lookup(job string) (Profile, bool) {
	s, ok := profiles[job]
	return s, ok
}

// Names returns every job name in sorted order.
func Names() []string {
	out := make([]string, 0, len(profiles))
	for name := range profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
