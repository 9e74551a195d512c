package patient

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID               uuid.UUID  `json:"id"`
	MRN              string     `json:"mrn"`
	FullName         string     `json:"full_name"`
	FatherName       string     `json:"father_name"`
	DOB              time.Time  `json:"dob"`
	Sex              string     `json:"sex"`
	Phone            string     `json:"phone"`
	CNIC             string     `json:"cnic"`
	Address          string     `json:"address"`
	OriginTerminalID *uuid.UUID `json:"origin_terminal_id,omitempty"`
	IsOfflineEntry   bool       `json:"is_offline_entry"`
	SyncedAt         *time.Time `json:"synced_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Age returns the patient's age at the given time, broken into full years,
// months and days.
func (p *Patient) Age(at time.Time) (years, months, days int) {
	years = at.Year() - p.DOB.Year()
	months = int(at.Month()) - int(p.DOB.Month())
	days = at.Day() - p.DOB.Day()

	if days < 0 {
		// Borrow the length of the month preceding `at`.
		days += time.Date(at.Year(), at.Month(), 0, 0, 0, 0, 0, at.Location()).Day()
		months--
	}
	if months < 0 {
		months += 12
		years--
	}
	return years, months, days
}
