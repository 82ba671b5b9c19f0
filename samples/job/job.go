package job

import (
	"github.com/weegigs/wee-streams-go/we"
)

const Aggregate we.AggregateType = "job"

type Status string

const (
	Queued    Status = "QUEUED"
	Running   Status = "RUNNING"
	Completed Status = "COMPLETED"
	Failed    Status = "FAILED"
	Rejected  Status = "REJECTED"
)

// Lifecycle admits new jobs as queued or rejected and moves them through
// running to completed or failed.
var Lifecycle = we.NewLifecycle(
	[]Status{Queued, Rejected},
	map[Status][]Status{
		Queued:  {Running},
		Running: {Completed, Failed},
	},
)

type Job struct {
	Type       string            `json:"type"`
	Owner      we.UserID         `json:"owner"`
	Status     Status            `json:"status"`
	Context    map[string]string `json:"context,omitempty"`
	Result     string            `json:"result,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	ResultRead bool              `json:"resultRead"`
}
