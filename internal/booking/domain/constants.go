package domain

// Status is the lifecycle state of a job
type Status string

// Job status constants
const (
	StatusPending               Status = "pending"
	StatusAssigned              Status = "assigned"
	StatusStarted               Status = "started"
	StatusCompleted             Status = "completed"
	StatusWithdrawBefore24      Status = "withdrawbefore24"
	StatusWithdrawAfter24       Status = "withdrawafter24"
	StatusTimedOut              Status = "timedout"
	StatusNotCarriedOutCustomer Status = "not_carried_out_customer"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusStarted, StatusCompleted,
		StatusWithdrawBefore24, StatusWithdrawAfter24, StatusTimedOut, StatusNotCarriedOutCustomer:
		return true
	}
	return false
}

// Terminal reports whether no further lifecycle operation (other than an admin
// update) can move the job out of s. timedout is re-enterable through reopen.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusWithdrawBefore24, StatusWithdrawAfter24, StatusNotCarriedOutCustomer:
		return true
	}
	return false
}

// JobType decides which translator types may take a job
type JobType string

const (
	JobTypePaid    JobType = "paid"
	JobTypeRWS     JobType = "rws"
	JobTypeUnpaid  JobType = "unpaid"
	JobTypeUnknown JobType = "unknown"
)

// JobTypeForConsumer derives a job type from the customer's consumer type
func JobTypeForConsumer(consumerType string) JobType {
	switch consumerType {
	case "rwsconsumer":
		return JobTypeRWS
	case "ngo":
		return JobTypeUnpaid
	case "paid":
		return JobTypePaid
	default:
		return JobTypeUnknown
	}
}

// Gender is an optional job requirement and a translator attribute
type Gender string

const (
	GenderNone   Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Certification is the certification requirement of a job
type Certification string

const (
	CertifiedNone    Certification = ""
	CertifiedNormal  Certification = "normal"
	CertifiedYes     Certification = "yes"
	CertifiedLaw     Certification = "law"
	CertifiedNLaw    Certification = "n_law"
	CertifiedHealth  Certification = "health"
	CertifiedNHealth Certification = "n_health"
	CertifiedBoth    Certification = "both"
)

// TranslatorType classifies translators by the job types they may take
type TranslatorType string

const (
	TranslatorProfessional TranslatorType = "professional"
	TranslatorRWS          TranslatorType = "rwstranslator"
	TranslatorVolunteer    TranslatorType = "volunteer"
)

// Translator certification levels
const (
	LevelCertified       = "Certified"
	LevelCertifiedLaw    = "Certified with specialisation in law"
	LevelCertifiedHealth = "Certified with specialisation in health care"
	LevelLayman          = "Layman"
	LevelCourses         = "Read Translation courses"
)

// Role of a user account
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTranslator Role = "translator"
	RoleAdmin      Role = "admin"
)

// Notification types carried in push payloads
const (
	NotificationSuitableJob        = "suitable_job"
	NotificationJobAccepted        = "job_accepted"
	NotificationJobCancelled       = "job_cancelled"
	NotificationSessionStartRemind = "session_start_remind"
	NotificationSessionEnded       = "session_ended"
)
