package domain

import "time"

// Person is someone the user wants to remember. Optional fields keep
// "absent" distinct from "empty".
type Person struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Relation  *string   `json:"relation,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	PhotoURI  *string   `json:"photoUri,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewPersonInput carries the fields a client may set when adding a person.
type NewPersonInput struct {
	Name     string  `json:"name"`
	Relation *string `json:"relation,omitempty"`
	Notes    *string `json:"notes,omitempty"`
	PhotoURI *string `json:"photoUri,omitempty"`
}

// Reminder is a time-based reminder, optionally tied to a person.
type Reminder struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Schedule    Schedule  `json:"schedule"`
	PersonID    *string   `json:"personId,omitempty"`
	PersonName  *string   `json:"personName,omitempty"`
	PersonPhoto *string   `json:"personPhoto,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewReminderInput carries the fields a client may set when adding a reminder.
type NewReminderInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Schedule    Schedule `json:"schedule"`
	PersonID    *string  `json:"personId,omitempty"`
}

// ScheduleDaily is the only schedule type currently supported.
const ScheduleDaily = "daily"

// Schedule describes when a reminder fires. Times are "HH:MM" in local time.
type Schedule struct {
	Type  string   `json:"type"`
	Times []string `json:"times"`
}

// Notification is a scheduled local notification.
type Notification struct {
	ID         string        `json:"id"`
	ReminderID string        `json:"reminderId,omitempty"`
	Title      string        `json:"title"`
	Body       string        `json:"body,omitempty"`
	FireAt     time.Time     `json:"fireAt"`
	Repeat     time.Duration `json:"repeat,omitempty"`
	// At is the HH:MM wall-clock time a daily repeat keeps.
	At string `json:"at,omitempty"`
}

// Delivery is what clients receive when a notification fires.
type Delivery struct {
	Notification Notification `json:"notification"`
	Speak        bool         `json:"speak"`
	SpeechText   string       `json:"speechText,omitempty"`
	SpeechRate   float64      `json:"speechRate,omitempty"`
}

// Settings is the user-facing view of stored preferences.
type Settings struct {
	SpeechEnabled        bool `json:"speechEnabled"`
	NotificationsEnabled bool `json:"notificationsEnabled"`
}
