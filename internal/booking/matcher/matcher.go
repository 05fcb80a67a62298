// Package matcher decides which translators may be offered which jobs.
//
// Every predicate is independent: a translator is eligible for a job only when
// all of them hold. The customer blacklist is applied separately by Filter,
// because potential-job listings do not consult it.
package matcher

import (
	"slices"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
)

// Predicate is a single eligibility rule
type Predicate struct {
	Name string
	Test func(t domain.TranslatorProfile, job domain.Job) bool
}

// Predicates in evaluation order
var Predicates = []Predicate{
	{Name: "job_type", Test: JobTypeAllowed},
	{Name: "language", Test: SpeaksLanguage},
	{Name: "gender", Test: GenderMatches},
	{Name: "certification", Test: CertificationMatches},
	{Name: "town", Test: TownReachable},
}

// certifiedLevels lists the translator levels accepted per certification requirement
var certifiedLevels = map[domain.Certification][]string{
	domain.CertifiedYes:     {domain.LevelCertified, domain.LevelCertifiedLaw, domain.LevelCertifiedHealth},
	domain.CertifiedLaw:     {domain.LevelCertifiedLaw},
	domain.CertifiedNLaw:    {domain.LevelCertifiedLaw},
	domain.CertifiedHealth:  {domain.LevelCertifiedHealth},
	domain.CertifiedNHealth: {domain.LevelCertifiedHealth},
	domain.CertifiedNormal:  {domain.LevelLayman, domain.LevelCourses},
	domain.CertifiedBoth: {
		domain.LevelCertified, domain.LevelCertifiedLaw, domain.LevelCertifiedHealth,
		domain.LevelLayman, domain.LevelCourses,
	},
}

// Match evaluates the predicates and returns the name of the first one that
// fails, or "" if the translator is eligible.
func Match(t domain.TranslatorProfile, job domain.Job) (bool, string) {
	for _, p := range Predicates {
		if !p.Test(t, job) {
			return false, p.Name
		}
	}
	return true, ""
}

// Eligible reports whether t may be offered job
func Eligible(t domain.TranslatorProfile, job domain.Job) bool {
	ok, _ := Match(t, job)
	return ok
}

// JobTypeAllowed: professionals take anything, rws translators only rws jobs,
// volunteers only unpaid jobs.
func JobTypeAllowed(t domain.TranslatorProfile, job domain.Job) bool {
	switch t.TranslatorType {
	case domain.TranslatorProfessional:
		return true
	case domain.TranslatorRWS:
		return job.JobType == domain.JobTypeRWS
	case domain.TranslatorVolunteer:
		return job.JobType == domain.JobTypeUnpaid
	default:
		return false
	}
}

func SpeaksLanguage(t domain.TranslatorProfile, job domain.Job) bool {
	return t.SpeaksLanguage(job.FromLanguageID)
}

func GenderMatches(t domain.TranslatorProfile, job domain.Job) bool {
	return job.Gender == domain.GenderNone || job.Gender == t.Gender
}

func CertificationMatches(t domain.TranslatorProfile, job domain.Job) bool {
	if job.Certified == domain.CertifiedNone {
		return true
	}
	levels, ok := certifiedLevels[job.Certified]
	if !ok {
		return false
	}
	return slices.Contains(levels, t.Level)
}

// TownReachable excludes translators outside the job's town when the customer
// accepts only an on-site interpreter.
func TownReachable(t domain.TranslatorProfile, job domain.Job) bool {
	if !job.RequiresPresence() {
		return true
	}
	return domain.SameTown(t.Town, job.Town)
}

// NotBlacklisted reports whether translatorID is absent from the customer's blacklist
func NotBlacklisted(blacklist []int64, translatorID int64) bool {
	return !slices.Contains(blacklist, translatorID)
}

// Filter returns the translators eligible for job who are not on blacklist.
// Order of translators is preserved.
func Filter(translators []domain.TranslatorProfile, job domain.Job, blacklist []int64) []domain.TranslatorProfile {
	var out []domain.TranslatorProfile
	for _, t := range translators {
		if !NotBlacklisted(blacklist, t.ID) || !Eligible(t, job) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// PotentialJobs returns the pending jobs t could accept. busy holds the jobs t is
// actively assigned to; a specific job is dropped when one of them overlaps it,
// since the translator could not accept it anyway.
func PotentialJobs(t domain.TranslatorProfile, pending []domain.Job, busy []domain.Job) []domain.Job {
	out := make([]domain.Job, 0, len(pending))
	for _, job := range pending {
		if job.Status != domain.StatusPending || !Eligible(t, job) {
			continue
		}
		if job.SpecificTranslatorID != nil && !CanTakeSpecific(job, busy) {
			continue
		}
		out = append(out, job)
	}
	return out
}

// CanTakeSpecific is the secondary check for earmarked jobs
func CanTakeSpecific(job domain.Job, busy []domain.Job) bool {
	return !Overlapping(job, busy)
}

// Overlapping reports whether any job in busy other than job itself overlaps it
func Overlapping(job domain.Job, busy []domain.Job) bool {
	for _, b := range busy {
		if b.ID != job.ID && b.Overlaps(job) {
			return true
		}
	}
	return false
}
