package cleaner

import (
	"sort"

	"github.com/sells-group/procurement-signals/internal/model"
)

// Registry is the set of known providers and their contracts, derived from
// the bounds configuration. It drives provider canonicalisation and contract
// title/number repair.
type Registry struct {
	providers []string // sorted
	canonical map[string]string
	contracts map[string][]model.ContractBounds
}

// NewRegistry indexes a bounds table. A nil or empty table yields an empty
// registry that repairs nothing.
func NewRegistry(bounds model.BoundsTable) *Registry {
	r := &Registry{
		canonical: make(map[string]string),
		contracts: make(map[string][]model.ContractBounds),
	}
	for key, b := range bounds {
		if _, seen := r.contracts[key.Provider]; !seen {
			r.providers = append(r.providers, key.Provider)
			r.canonical[canonicalProvider(key.Provider)] = key.Provider
		}
		r.contracts[key.Provider] = append(r.contracts[key.Provider], b)
	}
	sort.Strings(r.providers)
	for p := range r.contracts {
		list := r.contracts[p]
		sort.Slice(list, func(i, j int) bool { return list[i].ContractKey.Less(list[j].ContractKey) })
	}
	return r
}

// Len returns the number of known providers.
func (r *Registry) Len() int { return len(r.providers) }

// MatchProvider returns the registered provider that name refers to. An exact
// canonical match wins; otherwise the registered name with the highest word
// similarity at or above threshold is returned. Ties go to the
// alphabetically first provider.
func (r *Registry) MatchProvider(name string, threshold float64) (string, bool) {
	c := canonicalProvider(name)
	if c == "" {
		return "", false
	}
	if p, ok := r.canonical[c]; ok {
		return p, true
	}

	best, bestScore := "", 0.0
	for _, p := range r.providers {
		score := nameSimilarity(c, canonicalProvider(p))
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	if best == "" || bestScore < threshold {
		return "", false
	}
	return best, true
}

// RepairTitle returns the registered contract title for a row whose title is
// missing or unknown for provider. A registered contract with the same number
// supplies the title; a missing title is also filled from a provider's only
// contract. ok is false when no repair applies.
func (r *Registry) RepairTitle(provider, title, number string) (string, bool) {
	return r.repair(provider, title, number,
		func(b model.ContractBounds) string { return b.ContractTitle },
		func(b model.ContractBounds) string { return b.ContractNumber },
	)
}

// RepairNumber is the counterpart of RepairTitle for contract numbers, keyed
// on the (already repaired) title.
func (r *Registry) RepairNumber(provider, title, number string) (string, bool) {
	return r.repair(provider, number, title,
		func(b model.ContractBounds) string { return b.ContractNumber },
		func(b model.ContractBounds) string { return b.ContractTitle },
	)
}

func (r *Registry) repair(provider, value, other string, field, otherField func(model.ContractBounds) string) (string, bool) {
	list := r.contracts[provider]
	if len(list) == 0 {
		return "", false
	}
	for _, b := range list {
		if field(b) == value {
			return "", false
		}
	}
	if other != "" {
		for _, b := range list {
			if otherField(b) == other {
				return field(b), true
			}
		}
	}
	if value == "" && len(list) == 1 {
		return field(list[0]), true
	}
	return "", false
}

// Category returns the configured category for key, if any.
func (r *Registry) Category(key model.ContractKey) string {
	for _, b := range r.contracts[key.Provider] {
		if b.ContractKey == key {
			return b.Category
		}
	}
	return ""
}
