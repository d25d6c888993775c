package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format used for due dates in the dataset file.
const DateLayout = "2006-01-02"

// Date is a day-granular calendar date that marshals as "YYYY-MM-DD" so the
// dataset file round-trips without drift in time-of-day or zone information.
type Date struct {
	time.Time
}

// NewDate builds a Date truncated to UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an arbitrary instant to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, m, d)
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return Date{t}, nil
}

// AddDays returns the date shifted by the given number of days.
func (d Date) AddDays(days int) Date {
	return Date{d.Time.AddDate(0, 0, days)}
}

// String renders the wire format.
func (d Date) String() string {
	return d.Time.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time.Format(DateLayout))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// PeriodicEntry is a single scheduled review item (RPR or APS).
type PeriodicEntry struct {
	Date      Date `json:"date"`
	Completed bool `json:"completed"`
}

// Periodic record kinds and their fixed entry counts.
const (
	KindRPR = "rpr"
	KindAPS = "aps"

	RPRCount = 6
	APSCount = 3

	RPRIntervalDays = 180
	APSIntervalDays = 365
)

// EntryCount returns the fixed number of entries for a periodic kind, or 0
// when the kind is unknown.
func EntryCount(kind string) int {
	switch kind {
	case KindRPR:
		return RPRCount
	case KindAPS:
		return APSCount
	default:
		return 0
	}
}

// CanonicalMilestones is the ordered checklist every new student starts with.
var CanonicalMilestones = []string{
	"Topic Finalized",
	"Proposal Submitted",
	"Ethics Approval",
	"Course Work Completed",
	"Comprehensive Viva",
	"Data Collection",
	"Data Analysis",
	"Pre-synopsis Submitted",
	"Thesis Submitted",
	"Viva Voce Completed",
}

// StudentRecord is one student's progress state. Unknown fields found in the
// dataset file are captured in Extra and written back verbatim on save.
type StudentRecord struct {
	Password            string
	ForcePasswordChange bool
	Milestones          map[string]bool
	Remarks             string
	RPR                 map[string]PeriodicEntry
	APS                 map[string]PeriodicEntry
	Extra               map[string]json.RawMessage
}

type studentRecordWire struct {
	Password            string                   `json:"password,omitempty"`
	ForcePasswordChange bool                     `json:"forcePasswordChange,omitempty"`
	Milestones          map[string]bool          `json:"milestones"`
	Remarks             string                   `json:"remarks"`
	RPR                 map[string]PeriodicEntry `json:"rpr"`
	APS                 map[string]PeriodicEntry `json:"aps"`
}

var wireFields = map[string]struct{}{
	"password":            {},
	"forcePasswordChange": {},
	"milestones":          {},
	"remarks":             {},
	"rpr":                 {},
	"aps":                 {},
}

// MarshalJSON writes the known fields plus any preserved extras.
func (r StudentRecord) MarshalJSON() ([]byte, error) {
	wire := studentRecordWire{
		Password:            r.Password,
		ForcePasswordChange: r.ForcePasswordChange,
		Milestones:          r.Milestones,
		Remarks:             r.Remarks,
		RPR:                 r.RPR,
		APS:                 r.APS,
	}

	base, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}

	// A nil map means the field was absent in the loaded record; keep it
	// absent instead of writing a null the next load would reject.
	if r.Milestones == nil {
		delete(merged, "milestones")
	}
	if r.RPR == nil {
		delete(merged, "rpr")
	}
	if r.APS == nil {
		delete(merged, "aps")
	}

	for key, value := range r.Extra {
		if _, known := wireFields[key]; known {
			continue
		}
		merged[key] = value
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the known fields and stashes everything else in Extra.
func (r *StudentRecord) UnmarshalJSON(data []byte) error {
	var wire studentRecordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra := make(map[string]json.RawMessage)
	for key, value := range raw {
		if _, known := wireFields[key]; !known {
			extra[key] = value
		}
	}
	if len(extra) == 0 {
		extra = nil
	}

	*r = StudentRecord{
		Password:            wire.Password,
		ForcePasswordChange: wire.ForcePasswordChange,
		Milestones:          wire.Milestones,
		Remarks:             wire.Remarks,
		RPR:                 wire.RPR,
		APS:                 wire.APS,
		Extra:               extra,
	}
	return nil
}

// Dataset is the full keyed collection of student records, the unit of
// atomic load/save.
type Dataset map[string]StudentRecord

// NewStudentRecord produces the canonical milestone checklist and the
// generated RPR/APS schedule for a freshly created student: rpr{i} falls due
// 180*(i-1) days after baseRPR and aps{i} 365*(i-1) days after baseAPS.
func NewStudentRecord(baseRPR, baseAPS Date) StudentRecord {
	milestones := make(map[string]bool, len(CanonicalMilestones))
	for _, name := range CanonicalMilestones {
		milestones[name] = false
	}

	rpr := make(map[string]PeriodicEntry, RPRCount)
	for i := 1; i <= RPRCount; i++ {
		rpr[PeriodicKey(KindRPR, i)] = PeriodicEntry{Date: baseRPR.AddDays(RPRIntervalDays * (i - 1))}
	}

	aps := make(map[string]PeriodicEntry, APSCount)
	for i := 1; i <= APSCount; i++ {
		aps[PeriodicKey(KindAPS, i)] = PeriodicEntry{Date: baseAPS.AddDays(APSIntervalDays * (i - 1))}
	}

	return StudentRecord{
		Milestones: milestones,
		RPR:        rpr,
		APS:        aps,
	}
}

// PeriodicKey renders the storage key for a periodic entry, e.g. "rpr3".
func PeriodicKey(kind string, index int) string {
	return fmt.Sprintf("%s%d", kind, index)
}

// Clone deep-copies the record so callers can mutate without aliasing the
// dataset map values.
func (r StudentRecord) Clone() StudentRecord {
	clone := r
	if r.Milestones != nil {
		clone.Milestones = make(map[string]bool, len(r.Milestones))
		for k, v := range r.Milestones {
			clone.Milestones[k] = v
		}
	}
	if r.RPR != nil {
		clone.RPR = make(map[string]PeriodicEntry, len(r.RPR))
		for k, v := range r.RPR {
			clone.RPR[k] = v
		}
	}
	if r.APS != nil {
		clone.APS = make(map[string]PeriodicEntry, len(r.APS))
		for k, v := range r.APS {
			clone.APS[k] = v
		}
	}
	if r.Extra != nil {
		clone.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			clone.Extra[k] = v
		}
	}
	return clone
}

// Clone deep-copies the dataset.
func (d Dataset) Clone() Dataset {
	clone := make(Dataset, len(d))
	for id, record := range d {
		clone[id] = record.Clone()
	}
	return clone
}
