package system

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhaseFixedUpdate Phase = iota // 0: constant-step simulation
	PhaseUpdate                   // 1: lazy start, then variable-step update
	PhasePreRender                // 2: last changes before drawing
	PhaseLateUpdate               // 3: follow-up work (cameras, constraints)
	PhaseRender                   // 4: effect pipeline or direct draw
	PhasePostRender               // 5: after the frame is drawn
	PhaseCleanup                  // 6: destroy queued scene nodes

	phaseCount
)

var phaseNames = [phaseCount]string{
	"fixedUpdate",
	"update",
	"preRender",
	"lateUpdate",
	"render",
	"postRender",
	"cleanup",
}

func (p Phase) String() string {
	if p >= 0 && p < phaseCount {
		return phaseNames[p]
	}
	return "unknown"
}

// Phases lists every phase in execution order.
func Phases() []Phase {
	out := make([]Phase, phaseCount)
	for i := range out {
		out[i] = Phase(i)
	}
	return out
}
