package dto

import (
	"sort"

	"github.com/phdtrack/phdtrack-api/internal/models"
)

// CreateStudentRequest is the supervisor payload for enrolling a student.
type CreateStudentRequest struct {
	Identifier      string `json:"identifier" validate:"required"`
	BaseRPRDate     string `json:"base_rpr_date" validate:"required"`
	BaseAPSDate     string `json:"base_aps_date" validate:"required"`
	InitialPassword string `json:"initial_password" validate:"required,min=6"`
}

// RenameStudentRequest carries the replacement identifier for a rename.
type RenameStudentRequest struct {
	NewIdentifier string `json:"new_identifier" validate:"required"`
}

// ResetPasswordRequest carries the replacement credential for a reset.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// RemarksRequest carries supervisor-authored free text.
type RemarksRequest struct {
	Remarks string `json:"remarks"`
}

// MilestoneRequest toggles a single milestone flag.
type MilestoneRequest struct {
	Completed bool `json:"completed"`
}

// PeriodicEntryRequest updates one RPR or APS entry.
type PeriodicEntryRequest struct {
	Date      string `json:"date" validate:"required"`
	Completed bool   `json:"completed"`
}

// MilestoneStatus is one named checkpoint with its completion flag.
type MilestoneStatus struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// PeriodicEntryView is one scheduled review entry in a progress response.
type PeriodicEntryView struct {
	Key          string `json:"key"`
	Date         string `json:"date"`
	Completed    bool   `json:"completed"`
	DaysUntilDue *int   `json:"days_until_due,omitempty"`
	Overdue      bool   `json:"overdue"`
}

// StudentProgressResponse is the full progress view for one student.
type StudentProgressResponse struct {
	Identifier          string              `json:"identifier"`
	Milestones          []MilestoneStatus   `json:"milestones"`
	Remarks             string              `json:"remarks"`
	RPR                 []PeriodicEntryView `json:"rpr"`
	APS                 []PeriodicEntryView `json:"aps"`
	ForcePasswordChange bool                `json:"force_password_change"`
}

// OrderedMilestones renders a milestone map in canonical order, with any
// custom milestones appended alphabetically.
func OrderedMilestones(milestones map[string]bool) []MilestoneStatus {
	ordered := make([]MilestoneStatus, 0, len(milestones))
	seen := make(map[string]struct{}, len(milestones))

	for _, name := range models.CanonicalMilestones {
		if completed, ok := milestones[name]; ok {
			ordered = append(ordered, MilestoneStatus{Name: name, Completed: completed})
			seen[name] = struct{}{}
		}
	}

	extras := make([]string, 0)
	for name := range milestones {
		if _, ok := seen[name]; !ok {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	for _, name := range extras {
		ordered = append(ordered, MilestoneStatus{Name: name, Completed: milestones[name]})
	}

	return ordered
}
