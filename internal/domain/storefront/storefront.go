// Package storefront holds the storefront roster: which e-commerce shops are
// scraped, their base URLs, and whether they act as master or follower for
// the shared catalog.
package storefront

import "context"

// Role determines how a storefront's discoveries are reconciled against the
// canonical catalog.
type Role string

const (
	// RoleMaster storefronts create and overwrite catalog entries.
	RoleMaster Role = "master"
	// RoleFollower storefronts only attach price observations to products
	// the master has already catalogued.
	RoleFollower Role = "follower"
)

// TermSet names one of the embedded search term lists.
type TermSet string

const (
	// TermSetDetailed is the fine-grained term list used by storefronts
	// with good full-text search.
	TermSetDetailed TermSet = "detailed"
	// TermSetGeneral is the coarse term list for storefronts whose search
	// degrades on specific queries.
	TermSetGeneral TermSet = "general"
)

// Storefront is the persisted identity of a shop. Base URLs are deliberately
// kept out of the table; they live in the static roster below.
type Storefront struct {
	ID   int32
	Name string
}

// Config describes one storefront in the static roster.
type Config struct {
	Name    string
	BaseURL string
	Role    Role
	Terms   TermSet
	// Count is the per-term result count hint passed to the search API.
	Count int
}

// Repository defines persistence operations for storefront identities.
type Repository interface {
	// GetOrCreate resolves a storefront by name, creating it on first
	// encounter.
	GetOrCreate(ctx context.Context, name string) (*Storefront, error)
}

// roster is the full set of scraped storefronts. Disco is the catalog
// master; every other shop only contributes prices.
var roster = []Config{
	{Name: "Disco", BaseURL: "https://www.disco.com.ar", Role: RoleMaster, Terms: TermSetDetailed, Count: 50},
	{Name: "Jumbo", BaseURL: "https://www.jumbo.com.ar", Role: RoleFollower, Terms: TermSetDetailed, Count: 50},
	{Name: "Vea", BaseURL: "https://www.vea.com.ar", Role: RoleFollower, Terms: TermSetGeneral, Count: 50},
	{Name: "Dia", BaseURL: "https://diaonline.supermercadosdia.com.ar", Role: RoleFollower, Terms: TermSetDetailed, Count: 50},
	{Name: "Masonline", BaseURL: "https://www.masonline.com.ar", Role: RoleFollower, Terms: TermSetDetailed, Count: 50},
	{Name: "Farmacity", BaseURL: "https://www.farmacity.com", Role: RoleFollower, Terms: TermSetDetailed, Count: 50},
	{Name: "Carrefour", BaseURL: "https://www.carrefour.com.ar", Role: RoleFollower, Terms: TermSetDetailed, Count: 50},
}

// Roster returns the static storefront configuration, master first.
func Roster() []Config {
	out := make([]Config, len(roster))
	copy(out, roster)
	return out
}

// Lookup finds a roster entry by name (case-sensitive).
func Lookup(name string) (Config, bool) {
	for _, c := range roster {
		if c.Name == name {
			return c, true
		}
	}
	return Config{}, false
}

// BaseURL returns the configured base URL for a storefront name.
func BaseURL(name string) (string, bool) {
	c, ok := Lookup(name)
	if !ok {
		return "", false
	}
	return c.BaseURL, true
}
