package rules

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Well-known metadata keys in the legacy string map shape
const (
	MetaQualityScore      = "qualityScore"
	MetaHasOperativeNotes = "hasOperativeNotes"
	MetaClaimType         = "claimType"
	MetaReceivedDocuments = "receivedDocuments"
)

// Metadata carries claim/document scalars that don't come from extracted fields.
// Known keys are typed; anything else lands in Extra.
type Metadata struct {
	QualityScore      *float64          `json:"qualityScore,omitempty"`
	HasOperativeNotes *bool             `json:"hasOperativeNotes,omitempty"`
	ClaimType         string            `json:"claimType,omitempty"`
	ReceivedDocuments []string          `json:"receivedDocuments,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// Quality returns the document quality score and whether one was supplied
func (m Metadata) Quality() (float64, bool) {
	if m.QualityScore == nil {
		return 0, false
	}
	return *m.QualityScore, true
}

// OperativeNotes returns the operative-notes flag and whether one was supplied
func (m Metadata) OperativeNotes() (bool, bool) {
	if m.HasOperativeNotes == nil {
		return false, false
	}
	return *m.HasOperativeNotes, true
}

// Get returns an Extra value by key
func (m Metadata) Get(key string) (string, bool) {
	v, ok := m.Extra[key]
	return v, ok
}

// MetadataFromMap parses the loosely typed map produced upstream, where booleans
// and numbers arrive as strings. Unparseable known keys are kept in Extra.
func MetadataFromMap(raw map[string]string) Metadata {
	var m Metadata
	for key, value := range raw {
		value = strings.TrimSpace(value)
		switch key {
		case MetaQualityScore:
			if n, ok := ParseDecimal(value); ok {
				m.QualityScore = &n
				continue
			}
		case MetaHasOperativeNotes:
			if b, err := strconv.ParseBool(value); err == nil {
				m.HasOperativeNotes = &b
				continue
			}
		case MetaClaimType:
			m.ClaimType = value
			continue
		case MetaReceivedDocuments:
			for _, doc := range strings.Split(value, ",") {
				if doc = strings.TrimSpace(doc); doc != "" {
					m.ReceivedDocuments = append(m.ReceivedDocuments, doc)
				}
			}
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[key] = value
	}
	return m
}

// ParseAmount parses a field value as an exact decimal, tolerating a leading
// currency sign and thousands separators
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseDecimal is ParseAmount as a float64
func ParseDecimal(s string) (float64, bool) {
	d, ok := ParseAmount(s)
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}
