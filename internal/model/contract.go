package model

import (
	"strings"
	"time"
)

// ContractKey identifies a contract. Two keys are equal only when all three
// fields match, so concurrent contracts held by one provider stay distinct.
type ContractKey struct {
	Provider       string `csv:"provider" json:"provider" yaml:"provider"`
	ContractTitle  string `csv:"contract_title" json:"contract_title" yaml:"contract_title"`
	ContractNumber string `csv:"contract_number" json:"contract_number" yaml:"contract_number"`
}

// Valid reports whether every component of the key is non-empty.
func (k ContractKey) Valid() bool {
	return k.Provider != "" && k.ContractTitle != "" && k.ContractNumber != ""
}

func (k ContractKey) String() string {
	return k.Provider + "|" + k.ContractTitle + "|" + k.ContractNumber
}

// Less orders keys by provider, then title, then number.
func (k ContractKey) Less(o ContractKey) bool {
	if k.Provider != o.Provider {
		return k.Provider < o.Provider
	}
	if k.ContractTitle != o.ContractTitle {
		return k.ContractTitle < o.ContractTitle
	}
	return k.ContractNumber < o.ContractNumber
}

// ComplianceFlag classifies a contract-period's spend against its bounds.
type ComplianceFlag string

const (
	FlagWithinBounds     ComplianceFlag = "WithinBounds"
	FlagOverUpper        ComplianceFlag = "OverUpper"
	FlagUnderLower       ComplianceFlag = "UnderLower"
	FlagContractMismatch ComplianceFlag = "ContractMismatch"
)

// ContractBounds holds the configured annual spend bounds for one contract.
// Nil bounds mean "not configured".
type ContractBounds struct {
	ContractKey
	UpperBound *float64   `json:"upper_bound,omitempty"`
	LowerBound *float64   `json:"lower_bound,omitempty"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	Category   string     `json:"category,omitempty"`
}

// Consistent reports whether both bounds are configured and upper >= lower.
func (b ContractBounds) Consistent() bool {
	return b.UpperBound != nil && b.LowerBound != nil && *b.UpperBound >= *b.LowerBound
}

// BoundsTable indexes contract bounds by key.
type BoundsTable map[ContractKey]ContractBounds

// Lookup returns the bounds for key, if configured.
func (t BoundsTable) Lookup(key ContractKey) (ContractBounds, bool) {
	b, ok := t[key]
	return b, ok
}

// Providers returns the distinct provider names in the table, mapped to the
// contracts each one holds.
func (t BoundsTable) Providers() map[string][]ContractKey {
	out := make(map[string][]ContractKey)
	for k := range t {
		out[k.Provider] = append(out[k.Provider], k)
	}
	return out
}

// NormalizeKeyPart trims and collapses internal whitespace.
func NormalizeKeyPart(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
