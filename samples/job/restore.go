package job

import (
	"github.com/weegigs/wee-streams-go/restore"
	"github.com/weegigs/wee-streams-go/we"
)

// RestoreStrategies rebuild the job snapshots from the log. Batch markers
// carry no job state and are skipped.
func RestoreStrategies(store *we.Store[Job]) []restore.Strategy {
	return []restore.Strategy{
		restore.ForSnapshotStore("jobs", store),
		restore.SkipMarkers(),
	}
}
