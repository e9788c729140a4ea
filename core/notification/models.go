package notification

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type Kind string

const (
	KindDailyVerse      Kind = "daily_verse"
	KindReadingReminder Kind = "reading_reminder"
	KindStreakReminder  Kind = "streak_reminder"
)

var Kinds = []Kind{KindDailyVerse, KindReadingReminder, KindStreakReminder}

// EveryDay is the weekday mask with all days set; bit 0 is Sunday.
const EveryDay = 0x7f

const defaultTimeOfDay = "08:00"

type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"-"`
	Auth      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type Preference struct {
	UserID       string `json:"-"`
	Kind         Kind   `json:"kind"`
	Enabled      bool   `json:"enabled"`
	TimeOfDay    string `json:"time_of_day"` // HH:MM, user-local
	Timezone     string `json:"timezone"`
	Weekdays     int    `json:"weekdays"`       // bit mask, bit 0 = Sunday
	LastSentDate string `json:"last_sent_date"` // YYYY-MM-DD, user-local
}

// OnWeekday reports whether the preference is active on d.
func (p Preference) OnWeekday(d time.Weekday) bool {
	return p.Weekdays&(1<<uint(d)) != 0
}

// Payload is the JSON document pushed to the browser service worker.
type Payload struct {
	Kind  Kind   `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

type NewSubscription struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
}

func (ns *NewSubscription) Validate(validate *validator.Validate) error { return validate.Struct(ns) }

type Unsubscribe struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
}

func (u *Unsubscribe) Validate(validate *validator.Validate) error { return validate.Struct(u) }

type PreferenceInput struct {
	Kind      Kind   `json:"kind" validate:"required,oneof=daily_verse reading_reminder streak_reminder"`
	Enabled   bool   `json:"enabled"`
	TimeOfDay string `json:"time_of_day" validate:"required,hhmm"`
	Timezone  string `json:"timezone" validate:"omitempty,tz"`
	Weekdays  *int   `json:"weekdays" validate:"omitempty,min=0,max=127"`
}

type UpdatePreferences struct {
	Preferences []PreferenceInput `json:"preferences" validate:"required,min=1,max=3,dive"`
}

func (up *UpdatePreferences) Validate(validate *validator.Validate) error { return validate.Struct(up) }

// TickReport summarizes one scheduler tick.
type TickReport struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Expired int `json:"expired"`
}
