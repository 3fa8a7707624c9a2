package workers

// ProcessState represents the current lifecycle state of a managed process
type ProcessState string

const (
	ProcessStateIdle        ProcessState = "idle"         // Never started
	ProcessStateRunning     ProcessState = "running"      // Group leader alive
	ProcessStateStopping    ProcessState = "stopping"     // Interrupt sent, leader not yet exited
	ProcessStateExited      ProcessState = "exited"       // Group leader exited
	ProcessStateFailedStart ProcessState = "failed_start" // Last Run could not spawn
)

// Live reports whether the state has a group leader that has not exited.
func (s ProcessState) Live() bool {
	return s == ProcessStateRunning || s == ProcessStateStopping
}
