// Package gc implements the incremental tri-color mark-sweep collector that
// owns the heap object list (spec §4.4). It knows nothing about the
// language's AST, scopes, or VM dispatch loop — only about value.Managed
// objects, their Color, and the write-barrier invariant.
package gc

import "github.com/element-run/element/internal/value"

// Stage is one step of the Ready → MarkRoots → Mark → SweepHead → SweepRest →
// Ready cycle.
type Stage uint8

const (
	StageReady Stage = iota
	StageMarkRoots
	StageMark
	StageSweepHead
	StageSweepRest
)

// RootProvider is implemented by whatever owns the set of GC roots (modules'
// globals, every live execution context's frames and operand stack). The
// collector calls it only at the start of a cycle (StageMarkRoots).
type RootProvider interface {
	GCRoots(mark func(value.Managed))
}

// Collector is the memory manager: it owns the intrusive heap list and
// drives the incremental collection state machine.
type Collector struct {
	head Managed

	stage        Stage
	currentWhite value.Color
	nextWhite    value.Color

	gray []value.Managed

	sweepPrev value.Managed
	sweepCurr value.Managed

	stats stats
}

// Managed is a local alias purely to keep signatures short in this file.
type Managed = value.Managed

type kindCounters struct{ live, freed int64 }

type stats struct {
	strings, arrays, objects, functions, boxes, iterators, errors kindCounters
}

func New() *Collector {
	return &Collector{
		currentWhite: value.ColorWhite0,
		nextWhite:    value.ColorWhite1,
	}
}

// Allocate links obj into the heap at the head, painted the next-white so it
// survives until at least the following cycle (spec §4.4 "Allocation").
func (c *Collector) Allocate(obj Managed) {
	obj.Header().SetColor(c.nextWhite)
	obj.Header().SetNext(c.head)
	c.head = obj
	c.bumpLive(obj, 1)
}

// MarkStatic paints obj Static: never freed, never recolored (invariant I6).
// Used for constant-pool template Functions and other forever-alive objects.
func (c *Collector) MarkStatic(obj Managed) {
	obj.Header().SetColor(value.ColorStatic)
	obj.Header().SetNext(c.head)
	c.head = obj
}

// WriteBarrier must be called whenever a managed child is stored into a
// managed parent (array push/store, object member store, box store). It
// preserves invariant I5 without a full rescan.
func (c *Collector) WriteBarrier(parent, child Managed) {
	if child == nil {
		return
	}
	if parent != nil && parent.Header().Color() == value.ColorBlack && child.Header().Color() == c.currentWhite {
		child.Header().SetColor(value.ColorGray)
		c.gray = append(c.gray, child)
	}
}

// Collect advances the collection state machine by up to steps units of
// work, interleaving with the interpreter loop per spec §4.4.
func (c *Collector) Collect(steps int, roots RootProvider) {
	for i := 0; i < steps; i++ {
		switch c.stage {
		case StageReady:
			// Start of a cycle: swap whites, so everything painted next-white
			// before now (survivors and allocations alike) becomes a
			// reclamation candidate, while objects allocated from here on get
			// the new next-white and are safe for this cycle.
			c.currentWhite, c.nextWhite = c.nextWhite, c.currentWhite
			c.stage = StageMarkRoots
		case StageMarkRoots:
			roots.GCRoots(func(m Managed) {
				if m == nil || m.Header().Color() == value.ColorStatic {
					return
				}
				if m.Header().Color() != value.ColorGray && m.Header().Color() != value.ColorBlack {
					m.Header().SetColor(value.ColorGray)
					c.gray = append(c.gray, m)
				}
			})
			c.stage = StageMark
		case StageMark:
			if len(c.gray) == 0 {
				c.sweepPrev = nil
				c.sweepCurr = c.head
				c.stage = StageSweepHead
				continue
			}
			c.markOne()
		case StageSweepHead, StageSweepRest:
			if c.sweepCurr == nil {
				// Cycle complete; the whites swap when the next one starts.
				c.stage = StageReady
				continue
			}
			c.sweepOne()
			c.stage = StageSweepRest
		}
	}
}

func (c *Collector) markOne() {
	n := len(c.gray)
	obj := c.gray[n-1]
	c.gray = c.gray[:n-1]
	obj.Header().SetColor(value.ColorBlack)
	obj.MarkChildren(func(child Managed) {
		if child == nil {
			return
		}
		h := child.Header()
		if h.Color() == c.currentWhite {
			h.SetColor(value.ColorGray)
			c.gray = append(c.gray, child)
		}
	})
}

// sweepOne examines the current sweep cursor object: frees it if it is
// current-white, otherwise repaints it the next-white and advances.
func (c *Collector) sweepOne() {
	obj := c.sweepCurr
	h := obj.Header()
	next := h.Next()
	if h.Color() == value.ColorStatic {
		c.sweepPrev, c.sweepCurr = obj, next
		return
	}
	if h.Color() == c.currentWhite {
		// Unlink and free.
		if c.sweepPrev == nil {
			c.head = next
		} else {
			c.sweepPrev.Header().SetNext(next)
		}
		c.bumpLive(obj, -1)
		c.sweepCurr = next
		return
	}
	h.SetColor(c.nextWhite)
	c.sweepPrev, c.sweepCurr = obj, next
}

func (c *Collector) bumpLive(obj Managed, delta int64) {
	switch obj.(type) {
	case *value.StringObj:
		c.stats.strings.live += delta
	case *value.ArrayObj:
		c.stats.arrays.live += delta
	case *value.ObjectObj:
		c.stats.objects.live += delta
	case *value.FunctionObj:
		c.stats.functions.live += delta
	case *value.BoxObj:
		c.stats.boxes.live += delta
	case *value.IteratorObj:
		c.stats.iterators.live += delta
	case *value.ErrorObj:
		c.stats.errors.live += delta
	}
	if delta < 0 {
		switch obj.(type) {
		case *value.StringObj:
			c.stats.strings.freed++
		case *value.ArrayObj:
			c.stats.arrays.freed++
		case *value.ObjectObj:
			c.stats.objects.freed++
		case *value.FunctionObj:
			c.stats.functions.freed++
		case *value.BoxObj:
			c.stats.boxes.freed++
		case *value.IteratorObj:
			c.stats.iterators.freed++
		case *value.ErrorObj:
			c.stats.errors.freed++
		}
	}
}

// Stats returns the memory_stats native's payload: live/freed counts per kind.
func (c *Collector) Stats() map[string]int64 {
	return map[string]int64{
		"strings_live":   c.stats.strings.live,
		"strings_freed":  c.stats.strings.freed,
		"arrays_live":    c.stats.arrays.live,
		"arrays_freed":   c.stats.arrays.freed,
		"objects_live":   c.stats.objects.live,
		"objects_freed":  c.stats.objects.freed,
		"functions_live": c.stats.functions.live,
		"functions_freed": c.stats.functions.freed,
		"boxes_live":     c.stats.boxes.live,
		"boxes_freed":    c.stats.boxes.freed,
		"iterators_live": c.stats.iterators.live,
		"iterators_freed": c.stats.iterators.freed,
		"errors_live":    c.stats.errors.live,
		"errors_freed":   c.stats.errors.freed,
	}
}

// Stage reports the current phase, mostly for tests/introspection.
func (c *Collector) Stage() Stage { return c.stage }

// IsBlack/IsCurrentWhite expose color queries the VM needs for the write
// barrier call sites that live outside this package (e.g. StoreElement).
func (c *Collector) IsBlack(m Managed) bool { return m != nil && m.Header().Color() == value.ColorBlack }
func (c *Collector) IsCurrentWhite(m Managed) bool {
	return m != nil && m.Header().Color() == c.currentWhite
}
