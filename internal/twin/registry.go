package twin

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/twindeck/internal/journal"
	"github.com/kingrea/twindeck/internal/store"
)

const twinsKey = "twins"

// ErrNotFound is reported when an update or delete references an absent id.
var ErrNotFound = errors.New("twin: not found")

// Registry is the durable CRUD surface over the twin collection. Every
// mutation reads the full collection, applies the change and writes the whole
// collection back before returning, so the persisted state always matches the
// last returned value.
type Registry struct {
	store   store.Store
	journal *journal.Journal
	now     func() time.Time
	newID   func() string
}

// RegistryOption customizes a Registry during construction.
type RegistryOption func(*Registry)

// WithClock overrides the clock used for creation timestamps.
func WithClock(clock func() time.Time) RegistryOption {
	return func(r *Registry) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithIDGenerator overrides the local id generator.
func WithIDGenerator(gen func() string) RegistryOption {
	return func(r *Registry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// NewRegistry builds a registry over the given store. The journal may be nil.
func NewRegistry(s store.Store, jnl *journal.Journal, opts ...RegistryOption) *Registry {
	reg := &Registry{
		store:   s,
		journal: jnl,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(reg)
		}
	}
	return reg
}

// LoadAll returns every persisted twin. A corrupt collection degrades to an
// empty one; the problem is journaled, never surfaced as a failure.
func (r *Registry) LoadAll() []Twin {
	data, err := r.store.Load(twinsKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && r.journal != nil {
			r.journal.Warn("twin collection unreadable: %v", err)
		}
		return nil
	}
	var twins []Twin
	if err := json.Unmarshal(data, &twins); err != nil {
		if r.journal != nil {
			r.journal.Warn("twin collection corrupt, starting empty: %v", err)
		}
		return nil
	}
	return twins
}

// Count returns the number of persisted twins.
func (r *Registry) Count() int {
	return len(r.LoadAll())
}

// Get returns the twin with the given id.
func (r *Registry) Get(id string) (Twin, error) {
	for _, t := range r.LoadAll() {
		if t.ID == id {
			return t, nil
		}
	}
	return Twin{}, fmt.Errorf("twin: get %s: %w", id, ErrNotFound)
}

// Create commits a draft as a new twin. The id is the external asset id when
// minting succeeded, otherwise a locally generated token.
func (r *Registry) Create(input CommitInput) (Twin, error) {
	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		name = FallbackDisplayName
	}
	id := strings.TrimSpace(input.ExternalAssetID)
	if id == "" {
		id = r.newID()
	}
	created := Twin{
		ID:                 id,
		DisplayName:        name,
		AvatarGlyph:        avatarGlyph(name),
		CreatedAt:          r.now(),
		FilesCount:         input.FilesCount,
		ConversationsCount: 0,
		ExternalAssetID:    input.ExternalAssetID,
		StorageBlobID:      input.StorageBlobID,
		EncryptionKeyRef:   input.EncryptionKeyRef,
		Personality:        input.Personality,
		Character:          input.Character,
		Tone:               input.Tone,
		Bio:                input.Bio,
	}
	twins := append(r.LoadAll(), created)
	if err := r.saveAll(twins); err != nil {
		return Twin{}, err
	}
	if r.journal != nil {
		r.journal.Info("Twin created · %s (%s)", created.DisplayName, created.ID)
	}
	return created, nil
}

// Update merges patch fields into the twin with the given id.
func (r *Registry) Update(id string, patch Patch) (Twin, error) {
	twins := r.LoadAll()
	for i := range twins {
		if twins[i].ID != id {
			continue
		}
		patch.apply(&twins[i])
		if err := r.saveAll(twins); err != nil {
			return Twin{}, err
		}
		return twins[i], nil
	}
	return Twin{}, fmt.Errorf("twin: update %s: %w", id, ErrNotFound)
}

// Delete removes the twin with the given id. Absent ids are a no-op.
func (r *Registry) Delete(id string) error {
	twins := r.LoadAll()
	kept := twins[:0]
	removed := false
	for _, t := range twins {
		if t.ID == id {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return nil
	}
	if err := r.saveAll(kept); err != nil {
		return err
	}
	if r.journal != nil {
		r.journal.Info("Twin deleted · %s", id)
	}
	return nil
}

func (r *Registry) saveAll(twins []Twin) error {
	if twins == nil {
		twins = []Twin{}
	}
	encoded, err := json.MarshalIndent(twins, "", "  ")
	if err != nil {
		return fmt.Errorf("twin: encode collection: %w", err)
	}
	if err := r.store.Save(twinsKey, encoded); err != nil {
		return fmt.Errorf("twin: persist collection: %w", err)
	}
	return nil
}
