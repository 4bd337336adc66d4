package rules

// Task is a unit's high-level assignment for the round.
type Task int

const (
	Idle Task = iota
	Collecting
	Returning
	SeekingObjective
	Exploring
	Assembling
)

var taskNames = [...]string{"idle", "collecting", "returning", "seeking", "exploring", "assembling"}

func (t Task) String() string {
	if t < 0 || int(t) >= len(taskNames) {
		return "unknown"
	}
	return taskNames[t]
}
