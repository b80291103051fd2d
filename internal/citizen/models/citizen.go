package models

import (
	"strings"
	"time"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// LocalizedName carries a name in the two registry languages. Display
// strings are data; nothing in the engine derives behavior from them.
type LocalizedName struct {
	Latin string `json:"latin"`
	Local string `json:"local"`
}

func (n LocalizedName) isEmpty() bool {
	return strings.TrimSpace(n.Latin) == "" && strings.TrimSpace(n.Local) == ""
}

// Address is the structured residence address of a citizen.
type Address struct {
	Province string `json:"province"`
	District string `json:"district"`
	Village  string `json:"village"`
	Street   string `json:"street,omitempty"`
}

// Gender of the registered citizen.
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
	GenderOther  Gender = "other"
)

var validGenders = map[Gender]bool{
	GenderFemale: true,
	GenderMale:   true,
	GenderOther:  true,
}

// Citizen is the aggregate root of the citizen workflow.
//
// Invariants:
//   - NationalID is globally unique (enforced by the store's conditional
//     insert, not by this type)
//   - Status transitions follow the pending → approved | rejected machine
//   - Self-service applications start pending; administrator entries start
//     approved
type Citizen struct {
	ID          id.CitizenID
	NationalID  id.NationalID
	Name        LocalizedName
	FatherName  LocalizedName
	MotherName  LocalizedName
	Phone       string
	DateOfBirth time.Time
	Gender      Gender
	HouseholdID *id.HouseholdID
	Address     Address
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RegisterInput carries the fields of a citizen application. Both the public
// self-service path and the administrator path use it.
type RegisterInput struct {
	NationalID      string        `json:"national_id"`
	Name            LocalizedName `json:"name"`
	FatherName      LocalizedName `json:"father_name"`
	MotherName      LocalizedName `json:"mother_name"`
	Phone           string        `json:"phone"`
	DateOfBirth     string        `json:"date_of_birth"` // 2006-01-02
	Gender          string        `json:"gender"`
	HouseholdNumber string        `json:"household_number,omitempty"`
	Address         Address       `json:"address"`
}

// Normalize trims whitespace on free-text fields.
func (in *RegisterInput) Normalize() {
	in.NationalID = strings.TrimSpace(in.NationalID)
	in.Phone = strings.TrimSpace(in.Phone)
	in.HouseholdNumber = strings.TrimSpace(in.HouseholdNumber)
	in.Name.Latin = strings.TrimSpace(in.Name.Latin)
	in.Name.Local = strings.TrimSpace(in.Name.Local)
	in.FatherName.Latin = strings.TrimSpace(in.FatherName.Latin)
	in.FatherName.Local = strings.TrimSpace(in.FatherName.Local)
	in.MotherName.Latin = strings.TrimSpace(in.MotherName.Latin)
	in.MotherName.Local = strings.TrimSpace(in.MotherName.Local)
}

// NewCitizen validates the input and constructs a citizen in the given
// initial status.
func NewCitizen(in RegisterInput, initial Status, now time.Time) (*Citizen, error) {
	nid, err := id.ParseNationalID(in.NationalID)
	if err != nil {
		return nil, err
	}
	if in.Name.isEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "citizen name is required")
	}
	if in.FatherName.isEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "father name is required")
	}
	dob, err := time.Parse("2006-01-02", in.DateOfBirth)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "date of birth must be formatted 2006-01-02")
	}
	if dob.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "date of birth cannot be in the future")
	}
	gender := Gender(in.Gender)
	if !validGenders[gender] {
		return nil, dErrors.New(dErrors.CodeValidation, "gender must be female, male or other")
	}
	if initial != StatusPending && initial != StatusApproved {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "citizens start pending or approved")
	}

	return &Citizen{
		ID:          id.NewCitizenID(),
		NationalID:  nid,
		Name:        in.Name,
		FatherName:  in.FatherName,
		MotherName:  in.MotherName,
		Phone:       in.Phone,
		DateOfBirth: dob,
		Gender:      gender,
		Address:     in.Address,
		Status:      initial,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanDecide checks whether the record can still be approved or rejected.
// Use with ApplyDecision inside the store's Execute callback so validation
// and mutation happen under one lock.
func (c *Citizen) CanDecide(target Status) error {
	if target != StatusApproved && target != StatusRejected {
		return dErrors.New(dErrors.CodeInvariantViolation, "decision must be approved or rejected")
	}
	if !c.Status.CanTransitionTo(target) {
		return dErrors.New(dErrors.CodeInvariantViolation, "citizen application already decided")
	}
	return nil
}

// ApplyDecision transitions the record. Call CanDecide first.
func (c *Citizen) ApplyDecision(target Status, now time.Time) {
	c.Status = target
	c.UpdatedAt = now
}

// BirthYear is the four-digit year used as the certificate number prefix.
func (c *Citizen) BirthYear() int { return c.DateOfBirth.Year() }

// SameBirthDate compares date-of-birth at day precision, ignoring any time
// or zone component that storage round-trips may introduce.
func (c *Citizen) SameBirthDate(dob time.Time) bool {
	y1, m1, d1 := c.DateOfBirth.Date()
	y2, m2, d2 := dob.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Household groups citizens sharing one taxable property. The Number is the
// human-facing key printed on property documents; the ID is the stable
// reference other entities use.
type Household struct {
	ID        id.HouseholdID
	Number    string
	CreatedAt time.Time
}

// NewHousehold validates and constructs a household.
func NewHousehold(number string, now time.Time) (*Household, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "household number cannot be empty")
	}
	if len(number) > 32 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "household number must be 32 characters or less")
	}
	return &Household{ID: id.NewHouseholdID(), Number: number, CreatedAt: now}, nil
}
