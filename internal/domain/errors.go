package domain

import "errors"

var (
	// ErrEmptyRoster is returned when a quiz is started without any people on the roster.
	ErrEmptyRoster = errors.New("roster is empty: add people before playing")
	// ErrRosterUnavailable indicates the roster could not be fetched from its source.
	ErrRosterUnavailable = errors.New("roster unavailable")
	// ErrPersonNotFound indicates a person ID does not exist.
	ErrPersonNotFound = errors.New("person not found")
	// ErrReminderNotFound indicates a reminder ID does not exist.
	ErrReminderNotFound = errors.New("reminder not found")
	// ErrInvalidPerson is returned for person input that fails validation.
	ErrInvalidPerson = errors.New("invalid person")
	// ErrInvalidReminder is returned for reminder input that fails validation.
	ErrInvalidReminder = errors.New("invalid reminder")
	// ErrInvalidSchedule is returned for malformed reminder schedules.
	ErrInvalidSchedule = errors.New("invalid schedule")
)
