package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// AuthService provides business logic for authentication and identity
// mapping operations. It handles database interactions for identity data.
type AuthService struct {
	db *gorm.DB
}

// NewAuthService creates a new AuthService instance
func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{
		db: db,
	}
}

// GetIdentityContext retrieves the identity context for a given subject.
// Returns gorm.ErrRecordNotFound when the subject has never been seen.
func (as *AuthService) GetIdentityContext(subject string) (*IdentityContext, error) {
	if subject == "" {
		return nil, fmt.Errorf("subject is empty")
	}

	var identity IdentityContext
	result := as.db.Where("subject = ?", subject).First(&identity)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Debug("identity context not found", "subject", subject)
			return nil, result.Error
		}
		slog.Error("failed to fetch identity context from database",
			"subject", subject,
			"error", result.Error,
		)
		return nil, fmt.Errorf("failed to fetch identity context: %w", result.Error)
	}

	return &identity, nil
}

// SetCoreUserID records the core platform user created for a subject. The
// row is created on first sight so the mapping survives before any metadata
// is written.
func (as *AuthService) SetCoreUserID(subject, coreUserID string) error {
	if subject == "" {
		return fmt.Errorf("subject is empty")
	}
	if coreUserID == "" {
		return fmt.Errorf("core user ID is empty")
	}

	result := as.db.Save(&IdentityContext{
		Subject:    subject,
		CoreUserID: coreUserID,
		Metadata:   json.RawMessage(`{}`),
	})

	if result.Error != nil {
		slog.Error("failed to persist core user mapping",
			"subject", subject,
			"error", result.Error,
		)
		return fmt.Errorf("failed to persist core user mapping: %w", result.Error)
	}

	slog.Debug("core user mapping persisted",
		"subject", subject,
		"core_user_id", coreUserID,
	)

	return nil
}

// UpdateMetadata replaces the metadata blob for a subject. The metadata
// parameter must be valid JSON.
func (as *AuthService) UpdateMetadata(subject string, metadata json.RawMessage) error {
	if subject == "" {
		return fmt.Errorf("subject is empty")
	}

	if len(metadata) == 0 {
		return fmt.Errorf("identity metadata is empty")
	}

	var jsonData interface{}
	if err := json.Unmarshal(metadata, &jsonData); err != nil {
		return fmt.Errorf("invalid JSON in identity metadata: %w", err)
	}

	result := as.db.Model(&IdentityContext{}).
		Where("subject = ?", subject).
		Update("metadata", metadata)

	if result.Error != nil {
		slog.Error("failed to update identity metadata in database",
			"subject", subject,
			"error", result.Error,
		)
		return fmt.Errorf("failed to update identity metadata: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		slog.Warn("no identity context found to update",
			"subject", subject,
		)
		return fmt.Errorf("identity context not found for subject: %s", subject)
	}

	return nil
}

// UpsertIdentityContext creates or updates the identity context. Useful for
// initialization and for syncing with the identity provider.
func (as *AuthService) UpsertIdentityContext(identity *IdentityContext) error {
	if identity == nil || identity.Subject == "" {
		return fmt.Errorf("subject is empty")
	}

	if len(identity.Metadata) == 0 {
		identity.Metadata = json.RawMessage(`{}`)
	}

	result := as.db.Save(identity)

	if result.Error != nil {
		slog.Error("failed to upsert identity context",
			"subject", identity.Subject,
			"error", result.Error,
		)
		return fmt.Errorf("failed to upsert identity context: %w", result.Error)
	}

	slog.Debug("identity context upserted successfully",
		"subject", identity.Subject,
	)

	return nil
}
