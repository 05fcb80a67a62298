package domain

import "time"

// Job represents a single interpretation booking
type Job struct {
	ID                   int64         `db:"id" json:"id"`
	CustomerID           int64         `db:"customer_id" json:"customer_id"`
	Status               Status        `db:"status" json:"status"`
	Immediate            bool          `db:"immediate" json:"immediate"`
	Due                  time.Time     `db:"due" json:"due"`
	Duration             int           `db:"duration" json:"duration"`
	FromLanguageID       int64         `db:"from_language_id" json:"from_language_id"`
	Gender               Gender        `db:"gender" json:"gender,omitempty"`
	Certified            Certification `db:"certified" json:"certified,omitempty"`
	JobType              JobType       `db:"job_type" json:"job_type"`
	CustomerPhoneType    bool          `db:"customer_phone_type" json:"customer_phone_type"`
	CustomerPhysicalType bool          `db:"customer_physical_type" json:"customer_physical_type"`
	Town                 string        `db:"town" json:"town,omitempty"`
	UserEmail            string        `db:"user_email" json:"user_email,omitempty"`
	ByAdmin              bool          `db:"by_admin" json:"by_admin"`
	SpecificTranslatorID *int64        `db:"specific_translator_id" json:"specific_translator_id,omitempty"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	WillExpireAt         time.Time     `db:"will_expire_at" json:"will_expire_at"`
	AdminComments        string        `db:"admin_comments" json:"admin_comments,omitempty"`
	Reference            string        `db:"reference" json:"reference,omitempty"`
	WithdrawAt           *time.Time    `db:"withdraw_at" json:"withdraw_at,omitempty"`
	EndAt                *time.Time    `db:"end_at" json:"end_at,omitempty"`
	SessionTime          string        `db:"session_time" json:"session_time,omitempty"`
	Version              int64         `db:"version" json:"version"`
}

// Window returns the time span the booking occupies. Jobs without a duration
// occupy a single minute so that two bookings at the same instant still collide.
func (j Job) Window() (time.Time, time.Time) {
	d := time.Duration(j.Duration) * time.Minute
	if d <= 0 {
		d = time.Minute
	}
	return j.Due, j.Due.Add(d)
}

// Overlaps reports whether the two bookings occupy intersecting time spans
func (j Job) Overlaps(other Job) bool {
	aStart, aEnd := j.Window()
	bStart, bEnd := other.Window()
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// RequiresPresence reports whether only an on-site translator can serve the job
func (j Job) RequiresPresence() bool {
	return j.CustomerPhysicalType && !j.CustomerPhoneType
}

// Assignment links a translator to a job
type Assignment struct {
	ID           int64      `db:"id" json:"id"`
	JobID        int64      `db:"job_id" json:"job_id"`
	TranslatorID int64      `db:"translator_id" json:"translator_id"`
	AssignedAt   time.Time  `db:"assigned_at" json:"assigned_at"`
	CancelAt     *time.Time `db:"cancel_at" json:"cancel_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy  *int64     `db:"completed_by" json:"completed_by,omitempty"`
}

// Active reports whether the assignment is neither cancelled nor completed
func (a Assignment) Active() bool {
	return a.CancelAt == nil && a.CompletedAt == nil
}

// Cancelled returns a copy of a cancelled at t
func (a Assignment) Cancelled(t time.Time) Assignment {
	a.CancelAt = &t
	return a
}

// Completed returns a copy of a completed at t by the given user
func (a Assignment) Completed(t time.Time, by int64) Assignment {
	a.CompletedAt = &t
	a.CompletedBy = &by
	return a
}
