package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
)

const dueLayout = "2006-01-02 15:04"

// Email templates
const (
	templateJobCreated            = "emails.job-created"
	templateJobAccepted           = "emails.job-accepted"
	templateStatusToCustomer      = "emails.job-change-status-to-customer"
	templateCancelledCustomer     = "emails.status-changed-from-pending-or-assigned-customer"
	templateCancelledTranslator   = "emails.job-cancel-translator"
	templateSessionEnded          = "emails.session-ended"
	templateChangedDate           = "emails.job-changed-date"
	templateChangedLanguage       = "emails.job-changed-lang"
	templateChangedTranslatorCust = "emails.job-changed-translator-customer"
	templateChangedTranslatorOld  = "emails.job-changed-translator-old-translator"
	templateChangedTranslatorNew  = "emails.job-changed-translator-new-translator"
)

// for_text values of the session-ended email
const (
	forTextInvoice = "faktura"
	forTextSalary  = "lön"
)

const (
	reopenedComment           = "This booking is a reopening of booking #%d"
	msgMissingField           = "Du måste fylla in alla fält: %s"
	msgMissingContactMode     = "Du måste göra ett val här: customer_phone_type"
	msgTranslatorCannotCreate = "Translator can not create booking"
	msgPastBooking            = "Can't create booking in past"
	msgReopened               = "Tolk cancelled!"
	msgAdminCommentsRequired  = "admin_comments is required for this status change"
	msgSessionTimeRequired    = "session_time is required to complete a started job"
	msgCannotCancelInStatus   = "Bokningen kan inte avbokas i status %s"
)

func (s *Service) due(job domain.Job) string {
	return job.Due.In(s.cfg.Location).Format(dueLayout)
}

func (s *Service) acceptedMessage(job domain.Job, language string) string {
	return fmt.Sprintf("Du har nu accepterat och fått bokningen för %stolk %dmin %s", language, job.Duration, s.due(job))
}

func (s *Service) alreadyTakenMessage(job domain.Job, language string) string {
	return fmt.Sprintf("Denna %stolk %dmin %s har redan accepterats av annan tolk. Du har inte fått denna tolkning", language, job.Duration, s.due(job))
}

func (s *Service) overlapMessage(job domain.Job) string {
	return fmt.Sprintf("Du har redan en bokning den tiden %s. Du har inte fått denna tolkning", s.due(job))
}

const overlapShortMessage = "Du har redan en bokning den tiden! Bokningen är inte accepterad."

func (s *Service) customerAcceptedPush(job domain.Job, language string) string {
	return fmt.Sprintf("Din bokning för %s translators, %dmin, %s har accepterats av en tolk. Vänligen öppna appen för att se detaljer om tolken.",
		language, job.Duration, s.due(job))
}

func (s *Service) customerCancelledPush(job domain.Job, language string) string {
	return fmt.Sprintf("Kunden har avbokat bokningen för %stolk, %dmin, %s. Var god och kolla dina tidigare bokningar för detaljer.",
		language, job.Duration, s.due(job))
}

func (s *Service) translatorCancelledPush(job domain.Job, language string) string {
	return fmt.Sprintf("Er %stolk, %dmin %s, har avbokat tolkningen. Vi letar nu efter en ny tolk som kan ersätta denne. Tack.",
		language, job.Duration, s.due(job))
}

func (s *Service) lateCancelMessage() string {
	return fmt.Sprintf("Du kan inte avboka en bokning som sker inom 24 timmar genom DigitalTolk. Vänligen ring på %s och gör din avbokning over telefon. Tack!",
		s.cfg.SupportPhone)
}

func (s *Service) sessionReminder(job domain.Job, language string) string {
	due := job.Due.In(s.cfg.Location)
	where := "telefon"
	if job.CustomerPhysicalType {
		where = "på plats i " + job.Town
	}
	return fmt.Sprintf("Detta är en påminnelse om att du har en %stolkning (%s) kl %s på %s som vara i %d min. Lycka till och kom ihåg att ge feedback efter utförd tolkning!",
		language, where, due.Format("15:04"), due.Format("2006-01-02"), job.Duration)
}

func subjectCreated(id int64) string {
	return fmt.Sprintf("Vi har mottagit er tolkbokning. Bokningsnr: #%d", id)
}

func subjectAccepted(id int64) string {
	return fmt.Sprintf("Bekräftelse - tolk har accepterat er bokning (bokning # %d)", id)
}

func subjectReopened(id int64, language string) string {
	return fmt.Sprintf("Vi har nu återöppnat er bokning av %stolk för bokning #%d", language, id)
}

func subjectCancelled(id int64) string {
	return fmt.Sprintf("Avbokning av bokningsnr: #%d", id)
}

func subjectSessionEnded(id int64) string {
	return fmt.Sprintf("Information om avslutad tolkning för bokningsnummer # %d", id)
}

func subjectChanged(id int64) string {
	return fmt.Sprintf("Meddelande om ändring av tolkbokning för uppdrag # %d", id)
}

func subjectTranslatorChanged(id int64) string {
	return fmt.Sprintf("Meddelande om tilldelning av tolkuppdrag för uppdrag # %d", id)
}

// sessionInterval formats the elapsed time between from and to as "H:M:S".
// Hours are not capped at 24.
func sessionInterval(from, to time.Time) string {
	d := to.Sub(from)
	if d < 0 {
		d = -d
	}
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	sec := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%d:%d:%d", h, m, sec)
}

// sessionDisplay renders an "H:M:S" session time as "H tim M min"
func sessionDisplay(sessionTime string) string {
	parts := strings.Split(sessionTime, ":")
	if len(parts) < 2 {
		return sessionTime
	}
	return parts[0] + " tim " + parts[1] + " min"
}

// validSessionTime reports whether v looks like "H:M" or "H:M:S"
func validSessionTime(v string) bool {
	parts := strings.Split(v, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return false
	}
	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return false
		}
	}
	return true
}
