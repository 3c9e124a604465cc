package student

import (
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/resource"
)

// Genders
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

var (
	Descriptor = resource.Descriptor{
		Name:     "students",
		Label:    "student",
		Endpoint: "students",
		Scoped:   true,
		Columns:  []string{"ID", "Admission Number", "First Name", "Last Name", "Grade", "Parent", "Gender", "Date Of Birth", "Is Active"},
	}
	GradeDescriptor = resource.Descriptor{
		Name:     "grades",
		Label:    "grade",
		Endpoint: "grades",
		Scoped:   true,
		Columns:  []string{"ID", "Name", "Capacity", "Description"},
	}
	ParentDescriptor = resource.Descriptor{
		Name:     "parents",
		Label:    "parent",
		Endpoint: "parents",
		Scoped:   true,
		Columns:  []string{"ID", "First Name", "Last Name", "Email", "Phone", "Relationship"},
	}
)

type EmergencyContact struct {
	Name         string `json:"name" validate:"required,notblank"`
	Relationship string `json:"relationship" validate:"required"`
	Phone        string `json:"phone" validate:"required,phone"`
}

type Student struct {
	resource.Base
	School            int                `json:"school,omitempty"`
	FirstName         string             `json:"first_name" validate:"max=100"`
	MiddleName        string             `json:"middle_name,omitempty" validate:"max=100"`
	LastName          string             `json:"last_name" validate:"max=100"`
	DateOfBirth       string             `json:"date_of_birth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Grade             null.Int           `json:"grade"`
	Parent            null.Int           `json:"parent"`
	AdmissionNumber   string             `json:"admission_number" validate:"required,alphanum_"`
	Gender            string             `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	Address           string             `json:"address,omitempty"`
	EmergencyContacts []EmergencyContact `json:"emergency_contacts,omitempty" validate:"omitempty,max=5,dive"`
	IsActive          bool               `json:"is_active"`
}

func (s Student) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.FirstName, s.MiddleName, s.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func (s *Student) Clean() {
	s.FirstName = core.CleanString(s.FirstName)
	s.MiddleName = core.CleanString(s.MiddleName)
	s.LastName = core.CleanString(s.LastName)
	s.AdmissionNumber = core.CleanString(s.AdmissionNumber)
	s.Gender = core.CleanString(s.Gender, true /* lower */)
	for i := range s.EmergencyContacts {
		s.EmergencyContacts[i].Name = core.CleanString(s.EmergencyContacts[i].Name)
		s.EmergencyContacts[i].Phone = core.CleanString(s.EmergencyContacts[i].Phone)
	}
}

type Grade struct {
	resource.Base
	School      int    `json:"school,omitempty"`
	Name        string `json:"name" validate:"required,notblank,max=50"`
	Capacity    int    `json:"capacity" validate:"gte=0,lte=500"`
	Description string `json:"description,omitempty"`
}

// Parent is a guardian of one or more students.
type Parent struct {
	resource.Base
	School       int    `json:"school,omitempty"`
	FirstName    string `json:"first_name" validate:"required,notblank"`
	LastName     string `json:"last_name" validate:"required,notblank"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"required,phone"`
	Address      string `json:"address,omitempty"`
	Relationship string `json:"relationship,omitempty" validate:"omitempty,oneof=mother father guardian other"`
}

func (p Parent) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
