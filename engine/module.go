package engine

// Phase identifies one step of the fixed per-frame sequence. Phases always
// run in declaration order; modules subscribe to the ones they care about.
type Phase uint8

const (
	PhaseFrameStart Phase = iota
	PhaseInput
	PhaseSimulation
	PhaseSceneUpdate
	PhaseSceneCollect
	PhaseResourcePrepare
	PhaseCommandRecord
	PhasePresent
	PhaseFrameEnd

	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PhaseFrameStart:
		return "FrameStart"
	case PhaseInput:
		return "Input"
	case PhaseSimulation:
		return "Simulation"
	case PhaseSceneUpdate:
		return "SceneUpdate"
	case PhaseSceneCollect:
		return "SceneCollect"
	case PhaseResourcePrepare:
		return "ResourcePrepare"
	case PhaseCommandRecord:
		return "CommandRecord"
	case PhasePresent:
		return "Present"
	case PhaseFrameEnd:
		return "FrameEnd"
	default:
		return "Invalid"
	}
}

// PhaseMask selects the phases a module participates in.
type PhaseMask uint16

func MaskOf(phases ...Phase) PhaseMask {
	var mask PhaseMask
	for _, p := range phases {
		mask |= 1 << p
	}
	return mask
}

func (m PhaseMask) Has(p Phase) bool {
	return m&(1<<p) != 0
}

// Module is a unit of per-frame work registered with the engine. Within one
// phase modules execute in ascending priority order; ties run in
// registration order. Execute runs on the engine loop goroutine.
type Module interface {
	Name() string
	Priority() int
	Phases() PhaseMask
	Execute(phase Phase, fc *FrameContext) error
}
