// Package twin owns the canonical digital twin collection and the guided
// creation flow that produces new twins.
package twin

import (
	"strings"
	"time"
)

// FallbackDisplayName is used when a draft reaches commit without a name.
const FallbackDisplayName = "My Digital Twin"

// FreeTwinLimit caps how many twins the free tier may create. The registry
// only reports the count; enforcement is a UI concern.
const FreeTwinLimit = 3

// Twin is a persisted digital twin profile.
type Twin struct {
	ID                 string    `json:"id"`
	DisplayName        string    `json:"displayName"`
	AvatarGlyph        string    `json:"avatar"`
	CreatedAt          time.Time `json:"createdAt"`
	FilesCount         int       `json:"filesCount"`
	ConversationsCount int       `json:"conversationsCount"`
	ExternalAssetID    string    `json:"externalAssetId,omitempty"`
	StorageBlobID      string    `json:"storageBlobId,omitempty"`
	EncryptionKeyRef   string    `json:"encryptionKeyRef,omitempty"`
	Personality        string    `json:"personality,omitempty"`
	Character          string    `json:"character,omitempty"`
	Tone               string    `json:"tone,omitempty"`
	Bio                string    `json:"bio,omitempty"`
	IsListed           bool      `json:"isListed"`
	Price              uint64    `json:"price,omitempty"`
	CreatorAddress     string    `json:"creatorAddress,omitempty"`
}

// CommitInput is the validated payload the wizard hands to the registry.
// Unknown fields never pass through: this struct is the whole contract.
type CommitInput struct {
	DisplayName      string
	FilesCount       int
	ExternalAssetID  string
	StorageBlobID    string
	EncryptionKeyRef string
	Personality      string
	Character        string
	Tone             string
	Bio              string
}

// Patch selectively mutates twin fields on update. Nil fields are untouched.
type Patch struct {
	DisplayName        *string
	ConversationsCount *int
	IsListed           *bool
	Price              *uint64
	CreatorAddress     *string
	StorageBlobID      *string
	EncryptionKeyRef   *string
}

func (p Patch) apply(t *Twin) {
	if p.DisplayName != nil {
		t.DisplayName = *p.DisplayName
		t.AvatarGlyph = avatarGlyph(t.DisplayName)
	}
	if p.ConversationsCount != nil {
		t.ConversationsCount = *p.ConversationsCount
	}
	if p.IsListed != nil {
		t.IsListed = *p.IsListed
	}
	if p.Price != nil {
		t.Price = *p.Price
	}
	if p.CreatorAddress != nil {
		t.CreatorAddress = *p.CreatorAddress
	}
	if p.StorageBlobID != nil {
		t.StorageBlobID = *p.StorageBlobID
	}
	if p.EncryptionKeyRef != nil {
		t.EncryptionKeyRef = *p.EncryptionKeyRef
	}
}

func avatarGlyph(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	runes := []rune(trimmed)
	return strings.ToUpper(string(runes[0]))
}
