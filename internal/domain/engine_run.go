package domain

type RunState string

const (
	RunCompleted RunState = "completed"
	RunApplying  RunState = "applying"
	RunApplied   RunState = "applied"
	RunFailed    RunState = "failed"
)

// EngineRun is a finished solver invocation waiting to be applied to the
// persisted routes. Move runs carry the points being moved and, for moves
// into an existing route, the target route.
type EngineRun struct {
	ID             int64
	OptimisationID int64
	Mode           string
	State          RunState
	Result         *AssignmentResult
	MovedPointIDs  []int64
	TargetRouteID  int64
	Error          string
}
