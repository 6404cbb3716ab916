package traverse

import (
	"fmt"
	"math"

	"github.com/roman-kulish/auv-navigation/internal/heading"
)

const (
	// ForwardLegSeconds is the length of every forward leg of a sweep row
	ForwardLegSeconds = 3.0

	// edgeMargin keeps the last sweep row clear of the coverage area edge
	edgeMargin = 2
)

const (
	OpOrient OpKind = iota + 1
	OpTraverse
)

// OpKind selects what a plan step does
type OpKind int

func (k OpKind) String() string {
	switch k {
	case OpOrient:
		return "orient"
	case OpTraverse:
		return "traverse"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op is a single resumable step of a plan. Distances are seconds of forward
// thrust; one second of thrust covers roughly one meter.
type Op struct {
	Kind    OpKind
	Heading float64 // Target heading in degrees for OpOrient
	Seconds float64 // Thrust duration for OpTraverse
}

func (o Op) String() string {
	if o.Kind == OpOrient {
		return fmt.Sprintf("orient %.1f", o.Heading)
	}
	return fmt.Sprintf("traverse %.1fs", o.Seconds)
}

// SweepParams are the inputs of a coverage sweep
type SweepParams struct {
	Channel               string  // Probe channel the sweep investigates
	ForwardDistanceToEdge float64 // Distance left to the coverage area edge
	LoopCount             int     // Completed mission loops
	BaseHeading           float64 // Heading of the forward legs in degrees
	ForwardLegs           int     // Nominal number of sweep rows
	SidewaysStep          float64 // Nominal row spacing
	Current               float64 // Estimated lateral current, carried for logging
}

// Plan is a materialised sweep
type Plan struct {
	Ops          []Op
	ForwardLegs  int     // Rows actually used
	SidewaysStep float64 // Row spacing actually used
}

// ForwardDistance returns the distance the plan advances along the base heading
func (p Plan) ForwardDistance() float64 {
	return float64(p.ForwardLegs+1) * ForwardLegSeconds
}

// PlanSweep builds a boustrophedon sweep. The row count shrinks to stay inside
// the coverage area edge; only when the edge is not a constraint does an early
// loop halve the row spacing. The first sideways step always turns right of the
// base heading and the direction alternates on every row.
func PlanSweep(p SweepParams) Plan {
	legs := p.ForwardLegs
	sideways := p.SidewaysStep

	if p.ForwardDistanceToEdge < float64(legs) {
		legs = max(int(math.Floor(p.ForwardDistanceToEdge))-edgeMargin, 0)
	} else if float64(p.LoopCount) < sideways {
		sideways /= 2
	}

	base := heading.Wrap360(p.BaseHeading)
	row := heading.Wrap360(base + 90)

	ops := make([]Op, 0, 4*legs+8)
	ops = append(ops,
		Op{Kind: OpOrient, Heading: row},
		Op{Kind: OpTraverse, Seconds: sideways},
	)

	for i := 0; i < legs; i++ {
		row = heading.Wrap360(row + 180)
		ops = append(ops,
			Op{Kind: OpOrient, Heading: base},
			Op{Kind: OpTraverse, Seconds: ForwardLegSeconds},
			Op{Kind: OpOrient, Heading: row},
			Op{Kind: OpTraverse, Seconds: sideways},
		)
	}

	row = heading.Wrap360(row + 180)
	ops = append(ops,
		Op{Kind: OpOrient, Heading: base},
		Op{Kind: OpTraverse, Seconds: ForwardLegSeconds},
		Op{Kind: OpOrient, Heading: row},
		Op{Kind: OpTraverse, Seconds: sideways / 2},
		Op{Kind: OpOrient, Heading: base},
	)

	return Plan{Ops: ops, ForwardLegs: legs, SidewaysStep: sideways}
}
