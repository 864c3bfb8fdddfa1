// Package domain defines the mortuary record model, its column schema, the
// enumerated option sets, and the persistence contract shared by every store
// backend.
package domain

import "strings"

// Sex enumerates the recorded sex of the deceased.
type Sex string

// Canonical sex options. SexUnknown is the default for new and legacy rows.
const (
	SexMale    Sex = "Male"
	SexFemale  Sex = "Female"
	SexOther   Sex = "Other"
	SexUnknown Sex = "Unknown"
)

// YesNo answers a binary verification question.
type YesNo string

// Canonical yes/no options. No is the default.
const (
	Yes YesNo = "Yes"
	No  YesNo = "No"
)

// AutopsyRequirement captures whether an autopsy is needed.
type AutopsyRequirement string

// Canonical autopsy options. AutopsyPending is the default.
const (
	AutopsyYes     AutopsyRequirement = "Yes"
	AutopsyNo      AutopsyRequirement = "No"
	AutopsyPending AutopsyRequirement = "Pending"
)

// ReleaseStatus is the current disposition of a body.
type ReleaseStatus string

// Canonical release statuses. Every record starts In Storage.
const (
	StatusInStorage   ReleaseStatus = "In Storage"
	StatusReleased    ReleaseStatus = "Released"
	StatusTransferred ReleaseStatus = "Transferred"
)

// Option sets in display order.
var (
	SexOptions     = []string{string(SexMale), string(SexFemale), string(SexOther), string(SexUnknown)}
	YesNoOptions   = []string{string(Yes), string(No)}
	AutopsyOptions = []string{string(AutopsyYes), string(AutopsyNo), string(AutopsyPending)}
	StatusOptions  = []string{string(StatusInStorage), string(StatusReleased), string(StatusTransferred)}
)

// Column names of the persisted table.
const (
	ColRecordID         = "record_id"
	ColBodyTagNo        = "body_tag_no"
	ColDeceasedName     = "deceased_name"
	ColAge              = "age"
	ColSex              = "sex"
	ColDodDate          = "dod_date"
	ColTodTime          = "tod_time"
	ColCauseOfDeath     = "cause_of_death"
	ColWardUnit         = "ward_unit"
	ColBroughtBy        = "brought_by"
	ColAdmittedDT       = "admitted_dt"
	ColStorageLocation  = "storage_location"
	ColNextOfKin        = "next_of_kin"
	ColNextOfKinContact = "next_of_kin_contact"
	ColIDDocsSeen       = "id_docs_seen"
	ColAutopsyRequired  = "autopsy_required"
	ColAutopsyDate      = "autopsy_date"
	ColReleaseStatus    = "release_status"
	ColReleasedDT       = "released_dt"
	ColReleasedTo       = "released_to"
	ColRemarks          = "remarks"
	ColLastUpdated      = "last_updated"
)

// Columns is the canonical column order of the persisted table.
var Columns = []string{
	ColRecordID,
	ColBodyTagNo,
	ColDeceasedName,
	ColAge,
	ColSex,
	ColDodDate,
	ColTodTime,
	ColCauseOfDeath,
	ColWardUnit,
	ColBroughtBy,
	ColAdmittedDT,
	ColStorageLocation,
	ColNextOfKin,
	ColNextOfKinContact,
	ColIDDocsSeen,
	ColAutopsyRequired,
	ColAutopsyDate,
	ColReleaseStatus,
	ColReleasedDT,
	ColReleasedTo,
	ColRemarks,
	ColLastUpdated,
}

// Record is one intake-to-release episode for a single body. Every field is
// stored as text; the empty string means absent.
type Record struct {
	RecordID         string `json:"record_id"`
	BodyTagNo        string `json:"body_tag_no"`
	DeceasedName     string `json:"deceased_name"`
	Age              string `json:"age"`
	Sex              string `json:"sex"`
	DodDate          string `json:"dod_date"`
	TodTime          string `json:"tod_time"`
	CauseOfDeath     string `json:"cause_of_death"`
	WardUnit         string `json:"ward_unit"`
	BroughtBy        string `json:"brought_by"`
	AdmittedDT       string `json:"admitted_dt"`
	StorageLocation  string `json:"storage_location"`
	NextOfKin        string `json:"next_of_kin"`
	NextOfKinContact string `json:"next_of_kin_contact"`
	IDDocsSeen       string `json:"id_docs_seen"`
	AutopsyRequired  string `json:"autopsy_required"`
	AutopsyDate      string `json:"autopsy_date"`
	ReleaseStatus    string `json:"release_status"`
	ReleasedDT       string `json:"released_dt"`
	ReleasedTo       string `json:"released_to"`
	Remarks          string `json:"remarks"`
	LastUpdated      string `json:"last_updated"`
}

// field returns a pointer to the struct field backing column col, or nil.
func (r *Record) field(col string) *string {
	switch col {
	case ColRecordID:
		return &r.RecordID
	case ColBodyTagNo:
		return &r.BodyTagNo
	case ColDeceasedName:
		return &r.DeceasedName
	case ColAge:
		return &r.Age
	case ColSex:
		return &r.Sex
	case ColDodDate:
		return &r.DodDate
	case ColTodTime:
		return &r.TodTime
	case ColCauseOfDeath:
		return &r.CauseOfDeath
	case ColWardUnit:
		return &r.WardUnit
	case ColBroughtBy:
		return &r.BroughtBy
	case ColAdmittedDT:
		return &r.AdmittedDT
	case ColStorageLocation:
		return &r.StorageLocation
	case ColNextOfKin:
		return &r.NextOfKin
	case ColNextOfKinContact:
		return &r.NextOfKinContact
	case ColIDDocsSeen:
		return &r.IDDocsSeen
	case ColAutopsyRequired:
		return &r.AutopsyRequired
	case ColAutopsyDate:
		return &r.AutopsyDate
	case ColReleaseStatus:
		return &r.ReleaseStatus
	case ColReleasedDT:
		return &r.ReleasedDT
	case ColReleasedTo:
		return &r.ReleasedTo
	case ColRemarks:
		return &r.Remarks
	case ColLastUpdated:
		return &r.LastUpdated
	}
	return nil
}

// Get returns the value stored under column col. Unknown columns read as "".
func (r Record) Get(col string) string {
	if p := r.field(col); p != nil {
		return *p
	}
	return ""
}

// Set assigns value to column col and reports whether the column is known.
func (r *Record) Set(col, value string) bool {
	p := r.field(col)
	if p == nil {
		return false
	}
	*p = value
	return true
}

// Values returns the record as a row in canonical column order.
func (r Record) Values() []string {
	out := make([]string, len(Columns))
	for i, col := range Columns {
		out[i] = r.Get(col)
	}
	return out
}

// RecordFromValues builds a record from a row in canonical column order.
// Short rows leave the trailing fields empty.
func RecordFromValues(values []string) Record {
	var r Record
	for i, col := range Columns {
		if i < len(values) {
			r.Set(col, values[i])
		}
	}
	return r
}

// IsKnownColumn reports whether col belongs to the canonical schema.
func IsKnownColumn(col string) bool {
	var r Record
	return r.field(col) != nil
}

// ShortID is the display label for a record id. It is never a lookup key.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Label renders a human readable selector label for r.
func (r Record) Label() string {
	return strings.Join([]string{r.BodyTagNo, r.DeceasedName, r.ReleaseStatus, "(" + ShortID(r.RecordID) + ")"}, " — ")
}

// InStorage reports whether the record is still held in the mortuary.
func (r Record) InStorage() bool {
	return ReleaseStatus(r.ReleaseStatus) == StatusInStorage
}
