package auth

import (
	"encoding/json"
	"fmt"
)

// IdentityContext persists the mapping from an identity-provider subject to
// the user record held by the core platform, plus any metadata the onboarding
// flow accumulates for that identity.
type IdentityContext struct {
	Subject    string          `gorm:"type:varchar(100);column:subject;primaryKey;not null" json:"subject"`
	CoreUserID string          `gorm:"type:varchar(100);column:core_user_id" json:"core_user_id"`
	Metadata   json.RawMessage `gorm:"type:jsonb;column:metadata;serializer:json" json:"metadata"`
}

// TableName specifies the database table name for IdentityContext
func (i *IdentityContext) TableName() string {
	return "identity_contexts"
}

// AuthContext is the authentication context available in a request. It is
// transient, injected by the auth middleware, and carries both the persisted
// identity mapping and the raw bearer token so downstream calls to the core
// platform can forward it.
type AuthContext struct {
	*IdentityContext

	// Token is the raw bearer token presented on this request.
	Token string
}

// GetMetadataMap returns the identity metadata as a map for convenient access.
// If no metadata exists, it returns an empty map.
func (ac *AuthContext) GetMetadataMap() (map[string]any, error) {
	metadata := make(map[string]any)
	if ac == nil || ac.IdentityContext == nil || len(ac.IdentityContext.Metadata) == 0 {
		return metadata, nil
	}

	if err := json.Unmarshal(ac.IdentityContext.Metadata, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity metadata: %w", err)
	}

	return metadata, nil
}
