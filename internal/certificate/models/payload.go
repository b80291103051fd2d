package models

import (
	"strings"

	citizenmodels "civreg/internal/citizen/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// TradeLicensePayload carries the fields of a trade-license certificate.
type TradeLicensePayload struct {
	BusinessName    citizenmodels.LocalizedName `json:"business_name"`
	BusinessAddress string                      `json:"business_address"`
	BusinessType    string                      `json:"business_type"`
	Capital         int64                       `json:"capital"`
}

// Heir is one entry in a succession certificate. Order is meaningful and is
// preserved exactly as submitted.
type Heir struct {
	Name        citizenmodels.LocalizedName `json:"name"`
	Relation    string                      `json:"relation"`
	NationalID  string                      `json:"national_id,omitempty"`
	DateOfBirth string                      `json:"date_of_birth,omitempty"`
}

// SuccessionPayload carries the deceased identity and the ordered heirs.
type SuccessionPayload struct {
	Deceased   citizenmodels.LocalizedName `json:"deceased"`
	DeceasedAt string                      `json:"deceased_at,omitempty"`
	Heirs      []Heir                      `json:"heirs"`
}

// NarrativePayload is the free-form variant every kind without dedicated
// fields uses.
type NarrativePayload struct {
	Text string `json:"text"`
}

// Payload is the tagged variant attached to a certificate. Exactly one
// branch is set, and which one is dictated by the certificate type's Kind.
type Payload struct {
	TradeLicense *TradeLicensePayload `json:"trade_license,omitempty"`
	Succession   *SuccessionPayload   `json:"succession,omitempty"`
	Narrative    *NarrativePayload    `json:"narrative,omitempty"`
}

// Validate checks the payload against the kind: the matching branch must be
// present and complete, the others absent.
func (p Payload) Validate(kind id.CertificateKind) error {
	if err := p.exactlyOne(kind); err != nil {
		return err
	}
	switch kind {
	case id.KindTradeLicense:
		return p.TradeLicense.validate()
	case id.KindSuccession:
		return p.Succession.validate()
	case id.KindGeneral:
		return p.Narrative.validate()
	}
	return dErrors.New(dErrors.CodeValidation, "unsupported certificate kind")
}

func (p Payload) exactlyOne(kind id.CertificateKind) error {
	var want, others bool
	switch kind {
	case id.KindTradeLicense:
		want, others = p.TradeLicense != nil, p.Succession != nil || p.Narrative != nil
	case id.KindSuccession:
		want, others = p.Succession != nil, p.TradeLicense != nil || p.Narrative != nil
	case id.KindGeneral:
		want, others = p.Narrative != nil, p.TradeLicense != nil || p.Succession != nil
	}
	if !want {
		return dErrors.Newf(dErrors.CodeValidation, "payload for kind %s is missing", kind)
	}
	if others {
		return dErrors.Newf(dErrors.CodeValidation, "payload carries fields foreign to kind %s", kind)
	}
	return nil
}

func (p *TradeLicensePayload) validate() error {
	if isEmptyName(p.BusinessName) {
		return dErrors.New(dErrors.CodeValidation, "business name is required")
	}
	if strings.TrimSpace(p.BusinessAddress) == "" {
		return dErrors.New(dErrors.CodeValidation, "business address is required")
	}
	if strings.TrimSpace(p.BusinessType) == "" {
		return dErrors.New(dErrors.CodeValidation, "business type is required")
	}
	if p.Capital <= 0 {
		return dErrors.New(dErrors.CodeValidation, "business capital must be positive")
	}
	return nil
}

func (p *SuccessionPayload) validate() error {
	if isEmptyName(p.Deceased) {
		return dErrors.New(dErrors.CodeValidation, "deceased identity is required")
	}
	if len(p.Heirs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one heir is required")
	}
	for i, heir := range p.Heirs {
		if isEmptyName(heir.Name) {
			return dErrors.Newf(dErrors.CodeValidation, "heir %d is missing a name", i+1)
		}
		if strings.TrimSpace(heir.Relation) == "" {
			return dErrors.Newf(dErrors.CodeValidation, "heir %d is missing a relation", i+1)
		}
	}
	return nil
}

func (p *NarrativePayload) validate() error {
	if strings.TrimSpace(p.Text) == "" {
		return dErrors.New(dErrors.CodeValidation, "narrative text is required")
	}
	return nil
}

func isEmptyName(n citizenmodels.LocalizedName) bool {
	return strings.TrimSpace(n.Latin) == "" && strings.TrimSpace(n.Local) == ""
}
