package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pots-hq/pots/internal/workflow/model"
)

// SnapshotRepository persists workflow session snapshots so an onboarding
// survives a process restart. A snapshot is written after every successful
// action or advance and read back on session resume.
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new SnapshotRepository instance
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save upserts the snapshot for a session.
func (r *SnapshotRepository) Save(session *Session, potFactoryID string, state *model.WorkflowState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize workflow state: %w", err)
	}

	record := &model.SessionRecord{
		ID:           session.ID,
		Subject:      session.Subject,
		PotFactoryID: potFactoryID,
		UserID:       session.UserID(),
		State:        datatypes.JSON(blob),
	}

	if err := r.db.Save(record).Error; err != nil {
		slog.Error("failed to persist session snapshot",
			"session_id", session.ID,
			"error", err,
		)
		return fmt.Errorf("failed to persist session snapshot: %w", err)
	}

	return nil
}

// Load reads a session snapshot by id. Returns gorm.ErrRecordNotFound when
// no snapshot exists.
func (r *SnapshotRepository) Load(sessionID string) (*model.SessionRecord, *model.WorkflowState, error) {
	var record model.SessionRecord
	if err := r.db.Where("id = ?", sessionID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}

	var state model.WorkflowState
	if err := json.Unmarshal(record.State, &state); err != nil {
		return nil, nil, fmt.Errorf("failed to deserialize workflow state: %w", err)
	}

	return &record, &state, nil
}

// FindBySubject returns the most recent snapshot for a subject and factory,
// used to resume an interrupted onboarding.
func (r *SnapshotRepository) FindBySubject(subject, potFactoryID string) (*model.SessionRecord, *model.WorkflowState, error) {
	var record model.SessionRecord
	err := r.db.Where("subject = ? AND pot_factory_id = ?", subject, potFactoryID).
		Order("updated_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to find session snapshot: %w", err)
	}

	var state model.WorkflowState
	if err := json.Unmarshal(record.State, &state); err != nil {
		return nil, nil, fmt.Errorf("failed to deserialize workflow state: %w", err)
	}

	return &record, &state, nil
}

// Delete removes a session snapshot.
func (r *SnapshotRepository) Delete(sessionID string) error {
	if err := r.db.Delete(&model.SessionRecord{}, "id = ?", sessionID).Error; err != nil {
		return fmt.Errorf("failed to delete session snapshot: %w", err)
	}
	return nil
}
