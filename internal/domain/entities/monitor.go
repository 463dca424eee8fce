package entities

import (
	"time"
)

// MonitorState is the lifecycle state of a network monitor
type MonitorState string

const (
	MonitorInitializing MonitorState = "initializing"
	MonitorRunning      MonitorState = "running"
	MonitorFaulted      MonitorState = "faulted"
	MonitorRestarting   MonitorState = "restarting"
	MonitorHalted       MonitorState = "halted"
	MonitorStopped      MonitorState = "stopped"
)

// AllMonitorStates lists every state, used to reset state gauges
var AllMonitorStates = []MonitorState{
	MonitorInitializing,
	MonitorRunning,
	MonitorFaulted,
	MonitorRestarting,
	MonitorHalted,
	MonitorStopped,
}

// MonitorStatus is a point-in-time snapshot of a network monitor
type MonitorStatus struct {
	Network          string       `json:"network"`
	State            MonitorState `json:"state"`
	Account          string       `json:"account,omitempty"`
	LastCheckedBlock uint64       `json:"last_checked_block"`
	Restarts         int          `json:"restarts"`
	LastError        string       `json:"last_error,omitempty"`
	PendingForwards  int64        `json:"pending_forwards"`
	UpdatedAt        time.Time    `json:"updated_at"`
}
