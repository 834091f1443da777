// Package jobs maps villagers to workplaces and hands out the ordered work
// cycle each job repeats.
package jobs

import (
	"fmt"

	"github.com/talgya/hearth/internal/buildings"
	"github.com/talgya/hearth/internal/resources"
	"github.com/talgya/hearth/internal/world"
)

// TaskKind tags a Task variant.
type TaskKind uint8

const (
	KindMoveTo TaskKind = iota
	KindHarvest
	KindDeposit
	KindReturnToWorkplace
)

var taskKindNames = [...]string{"move_to", "harvest", "deposit", "return_to_workplace"}

func (k TaskKind) String() string {
	if int(k) < len(taskKindNames) {
		return taskKindNames[k]
	}
	return "unknown"
}

// Task is one step of a work cycle. The set of variants is closed:
// MoveTo, Harvest, Deposit and ReturnToWorkplace.
type Task interface {
	Kind() TaskKind
	task()
}

// Target is where a MoveTo leads: NodeTarget, BuildingTarget or
// PositionTarget.
type Target interface {
	target()
	String() string
}

// NodeTarget is the nearest available node of a type.
type NodeTarget struct {
	Type resources.NodeType
}

// BuildingTarget is a specific building when ID is set, otherwise the
// nearest storage building when Storage is set, otherwise the nearest
// building of TypeID.
type BuildingTarget struct {
	ID      buildings.BuildingID
	Storage bool
	TypeID  string
}

// PositionTarget is a fixed tile.
type PositionTarget struct {
	Coord world.GridCoord
}

func (NodeTarget) target()     {}
func (BuildingTarget) target() {}
func (PositionTarget) target() {}

func (t NodeTarget) String() string { return "node:" + t.Type.String() }

func (t BuildingTarget) String() string {
	switch {
	case t.ID != 0:
		return fmt.Sprintf("building:%d", t.ID)
	case t.Storage:
		return "storage"
	}
	return "building:" + t.TypeID
}

func (t PositionTarget) String() string { return fmt.Sprintf("tile:%d,%d", t.Coord.X, t.Coord.Y) }

// MoveTo walks to a target.
type MoveTo struct {
	Target Target
}

// Harvest gathers Resource, Amount per work swing.
type Harvest struct {
	Resource string
	Amount   float64
}

// Deposit unloads Resource at the storage the villager stands by.
type Deposit struct {
	Resource string
}

// ReturnToWorkplace walks back to the workplace entrance.
type ReturnToWorkplace struct {
	Position world.GridCoord
}

func (MoveTo) Kind() TaskKind            { return KindMoveTo }
func (Harvest) Kind() TaskKind           { return KindHarvest }
func (Deposit) Kind() TaskKind           { return KindDeposit }
func (ReturnToWorkplace) Kind() TaskKind { return KindReturnToWorkplace }

func (MoveTo) task()            {}
func (Harvest) task()           {}
func (Deposit) task()           {}
func (ReturnToWorkplace) task() {}

// Describe renders a task for logs and the API.
func Describe(t Task) string {
	switch v := t.(type) {
	case MoveTo:
		return "move_to " + v.Target.String()
	case Harvest:
		return fmt.Sprintf("harvest %s x%g", v.Resource, v.Amount)
	case Deposit:
		return "deposit " + v.Resource
	case ReturnToWorkplace:
		return fmt.Sprintf("return_to_workplace %d,%d", v.Position.X, v.Position.Y)
	}
	return "unknown"
}
