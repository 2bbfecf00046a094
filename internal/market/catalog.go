// Package market derives marketplace listings from twins. Listings are a
// projection: they copy the twin's display fields at listing time and are not
// re-synced when the twin changes later.
package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/twindeck/internal/journal"
	"github.com/kingrea/twindeck/internal/store"
	"github.com/kingrea/twindeck/internal/twin"
)

const listingsKey = "listings"

// ErrIdentityRequired is reported when a listing is attempted without a
// connected creator identity.
var ErrIdentityRequired = errors.New("market: creator identity required")

// Listing is the marketplace-facing projection of a twin. It is keyed by the
// source twin's id.
type Listing struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"displayName"`
	AvatarGlyph    string    `json:"avatar"`
	Description    string    `json:"description,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Price          uint64    `json:"price"`
	IsPublic       bool      `json:"isPublic"`
	CreatorAddress string    `json:"creatorAddress"`
	ListedAt       time.Time `json:"listedAt"`
}

// Catalog owns the listing collection. Twin data flows in read-only at the
// moment of listing; the twin registry stays the source of truth for twins.
type Catalog struct {
	store    store.Store
	registry *twin.Registry
	journal  *journal.Journal
	now      func() time.Time
}

// CatalogOption customizes a Catalog during construction.
type CatalogOption func(*Catalog)

// WithClock overrides the clock used for listing timestamps.
func WithClock(clock func() time.Time) CatalogOption {
	return func(c *Catalog) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewCatalog builds a catalog over the given store and registry.
func NewCatalog(s store.Store, reg *twin.Registry, jnl *journal.Journal, opts ...CatalogOption) *Catalog {
	cat := &Catalog{
		store:    s,
		registry: reg,
		journal:  jnl,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cat)
		}
	}
	return cat
}

// LoadAll returns every persisted listing. A corrupt collection degrades to
// an empty one; the problem is journaled, never surfaced as a failure.
func (c *Catalog) LoadAll() []Listing {
	data, err := c.store.Load(listingsKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && c.journal != nil {
			c.journal.Warn("listing collection unreadable: %v", err)
		}
		return nil
	}
	var listings []Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		if c.journal != nil {
			c.journal.Warn("listing collection corrupt, starting empty: %v", err)
		}
		return nil
	}
	return listings
}

// ListOrUpdate promotes a twin to a listing, or rewrites the existing listing
// for that twin. A delist is the same call with isPublic=false; there is no
// separate path. The creator address is written on every call.
func (c *Catalog) ListOrUpdate(t twin.Twin, price uint64, isPublic bool, creator string) (Listing, error) {
	creator = strings.TrimSpace(creator)
	if creator == "" {
		return Listing{}, ErrIdentityRequired
	}
	updated, err := c.registry.Update(t.ID, twin.Patch{
		IsListed:       &isPublic,
		Price:          &price,
		CreatorAddress: &creator,
	})
	if err != nil {
		return Listing{}, fmt.Errorf("market: list %s: %w", t.ID, err)
	}
	entry := Listing{
		ID:             updated.ID,
		DisplayName:    updated.DisplayName,
		AvatarGlyph:    updated.AvatarGlyph,
		Description:    updated.Bio,
		Tags:           listingTags(updated),
		Price:          price,
		IsPublic:       isPublic,
		CreatorAddress: creator,
		ListedAt:       c.now(),
	}
	listings := c.LoadAll()
	replaced := false
	for i := range listings {
		if listings[i].ID == entry.ID {
			listings[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		listings = append(listings, entry)
	}
	if err := c.saveAll(listings); err != nil {
		return Listing{}, err
	}
	if c.journal != nil {
		c.journal.Info("Listing updated · %s · %d credits · public=%t", entry.DisplayName, entry.Price, entry.IsPublic)
	}
	return entry, nil
}

// Orphans reports listings whose source twin no longer exists. Deleting a
// twin does not cascade into its listing; this surfaces the drift instead of
// silently fixing it.
func (c *Catalog) Orphans(twins []twin.Twin) []Listing {
	known := make(map[string]struct{}, len(twins))
	for _, t := range twins {
		known[t.ID] = struct{}{}
	}
	var orphans []Listing
	for _, l := range c.LoadAll() {
		if _, ok := known[l.ID]; !ok {
			orphans = append(orphans, l)
		}
	}
	return orphans
}

func (c *Catalog) saveAll(listings []Listing) error {
	if listings == nil {
		listings = []Listing{}
	}
	encoded, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return fmt.Errorf("market: encode collection: %w", err)
	}
	if err := c.store.Save(listingsKey, encoded); err != nil {
		return fmt.Errorf("market: persist collection: %w", err)
	}
	return nil
}

func listingTags(t twin.Twin) []string {
	var tags []string
	if t.Character != "" {
		tags = append(tags, titleCase(t.Character))
	}
	if t.Tone != "" {
		tags = append(tags, t.Tone)
	}
	return tags
}

func titleCase(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	lower := strings.ToLower(value)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
