package ports

import (
	"time"

	"github.com/bnema/collab-core/internal/domain"
)

// CleanupTask asks for fire to run once DueAt has passed. Firing is a hint,
// not an order: fire re-checks session emptiness itself, so a task that was
// made obsolete by a rejoin is simply a no-op. Schedulers never need to
// cancel tasks.
type CleanupTask struct {
	DocumentID domain.DocumentID
	DueAt      time.Time
}

type CleanupScheduler interface {
	Schedule(task CleanupTask, fire func())
	// Stop discards pending tasks. Tasks already firing may still complete.
	Stop()
}
