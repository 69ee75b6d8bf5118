package vehicle

type DriveState int

const (
	StateIdle DriveState = iota
	StateMove
)

func (s DriveState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateMove:
		return "MOVE"
	default:
		return "UNKNOWN"
	}
}

// FarDistance is reported when no obstacle is in range.
const FarDistance = 1000.0

type FSMConfig struct {
	DeadZone       int
	StopDistance   float64
	ResumeDistance float64
}

type CarState struct {
	State    DriveState
	Throttle int
	Turn     int
	Distance float64
	// Blocked holds forward throttle at zero until the obstacle is past ResumeDistance.
	Blocked bool
}

func NewCarState() CarState {
	return CarState{
		State:    StateIdle,
		Distance: FarDistance,
	}
}

// UpdateFSM computes the next output state from the current one, the latest command and the measured distance.
func UpdateFSM(cur CarState, cmdThrottle, cmdTurn int, distance float64, cfg FSMConfig) CarState {
	next := cur
	next.Distance = distance
	next.Blocked = distance <= cfg.StopDistance || (cur.Blocked && distance <= cfg.ResumeDistance)

	engaged := abs(cmdThrottle) > cfg.DeadZone || abs(cmdTurn) > cfg.DeadZone
	forwardBlocked := next.Blocked && cmdThrottle > 0

	switch cur.State {
	case StateIdle:
		next.Throttle = 0
		next.Turn = 0
		if engaged && !forwardBlocked {
			next.Throttle = cmdThrottle
			next.Turn = cmdTurn
			next.State = StateMove
		}

	case StateMove:
		next.Throttle = cmdThrottle
		if forwardBlocked {
			next.Throttle = 0
		}
		next.Turn = cmdTurn

		if !engaged {
			next.Throttle = 0
			next.Turn = 0
			next.State = StateIdle
		}
	}
	return next
}

func abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
