package session

import (
	"github.com/akrishnanDG/unit-orchestrator/internal/models"
)

// Handle binds a tracker to one session id so the engine does not have to
// thread the id through every call.
type Handle struct {
	tracker *Tracker
	id      string
}

// For returns a handle for sessionID. The id is not checked until first use.
func (t *Tracker) For(sessionID string) *Handle {
	return &Handle{tracker: t, id: sessionID}
}

// ID returns the bound session id
func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) StartMigration(unit models.MigrationUnit) (string, error) {
	return h.tracker.StartMigration(h.id, unit)
}

func (h *Handle) UpdateStatus(unitID string, status models.Status) error {
	return h.tracker.UpdateStatus(h.id, unitID, status)
}

func (h *Handle) RecordError(unitID string, err error) error {
	return h.tracker.RecordError(h.id, unitID, err)
}

func (h *Handle) RecordWarning(unitID, warning string) error {
	return h.tracker.RecordWarning(h.id, unitID, warning)
}

func (h *Handle) SetMetadata(unitID string, md models.RecordMetadata) error {
	return h.tracker.SetMetadata(h.id, unitID, md)
}

func (h *Handle) SetPayload(unitID string, p models.Payload) error {
	return h.tracker.SetPayload(h.id, unitID, p)
}

func (h *Handle) Summary() (models.SessionSummary, error) {
	return h.tracker.Summary(h.id)
}
