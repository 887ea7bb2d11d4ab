package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a user's exchange credential pair, stored encrypted at rest.
type APIKey struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	APIKeyEncrypted    string
	APISecretEncrypted string
	IsActive           bool
	CreatedAt          time.Time
}

// Credentials is a decrypted key/secret pair. Instances must not outlive
// the operation they were decrypted for.
type Credentials struct {
	APIKey    string
	APISecret string
}
