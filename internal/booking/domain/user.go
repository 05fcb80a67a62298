package domain

import "strings"

// NotificationPrefs holds the opt-outs a user has chosen
type NotificationPrefs struct {
	NoNotifications bool `db:"no_notifications" json:"no_notifications"`
	NoEmergency     bool `db:"no_emergency" json:"no_emergency"`
	NoNightTime     bool `db:"no_night_time" json:"no_night_time"`
}

// User is a customer, translator or admin account
type User struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Email        string `db:"email" json:"email"`
	Mobile       string `db:"mobile" json:"mobile,omitempty"`
	Role         Role   `db:"role" json:"role"`
	ConsumerType string `db:"consumer_type" json:"consumer_type,omitempty"`
	CustomerType string `db:"customer_type" json:"customer_type,omitempty"`
	City         string `db:"city" json:"city,omitempty"`
	Active       bool   `db:"active" json:"active"`
	NotificationPrefs
}

// TranslatorProfile carries the attributes the matcher filters on
type TranslatorProfile struct {
	User
	TranslatorType TranslatorType `db:"translator_type" json:"translator_type"`
	Languages      []int64        `db:"-" json:"languages"`
	Gender         Gender         `db:"gender" json:"gender,omitempty"`
	Level          string         `db:"translator_level" json:"translator_level,omitempty"`
	Town           string         `db:"town" json:"town,omitempty"`
}

// SpeaksLanguage reports whether languageID is in the translator's language set
func (p TranslatorProfile) SpeaksLanguage(languageID int64) bool {
	for _, id := range p.Languages {
		if id == languageID {
			return true
		}
	}
	return false
}

// SameTown compares towns ignoring case and surrounding whitespace
func SameTown(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
