package outcome

import (
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/egosim/internal/graph"
)

// ErrDegenerateSample is returned when the treated or the control ego arm is empty
var ErrDegenerateSample = errors.New("degenerate sample: empty treatment arm")

// Estimate returns the difference in mean outcome between treated and
// untreated egos. Non-ego nodes are ignored.
func Estimate(state *graph.State) (float64, error) {
	var treatedSum, controlSum float64
	var treated, control int
	for _, node := range state.Nodes {
		if !node.IsEgo {
			continue
		}
		if node.Z == 1 {
			treatedSum += node.Y
			treated++
		} else {
			controlSum += node.Y
			control++
		}
	}
	if treated == 0 || control == 0 {
		return 0, fmt.Errorf("%w: %d treated, %d control egos", ErrDegenerateSample, treated, control)
	}
	return treatedSum/float64(treated) - controlSum/float64(control), nil
}
