package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"remindme-service/internal/app"
	"remindme-service/internal/domain"
)

// APIHandler serves the REST surface for people, reminders, settings and
// scheduled notifications.
type APIHandler struct {
	people     *app.PeopleService
	reminders  *app.ReminderService
	settings   *app.SettingsService
	dispatcher *app.Dispatcher
	log        *slog.Logger
}

func NewAPIHandler(people *app.PeopleService, reminders *app.ReminderService, settings *app.SettingsService, dispatcher *app.Dispatcher, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{people: people, reminders: reminders, settings: settings, dispatcher: dispatcher, log: logger}
}

// Register mounts every route on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/people", h.listPeople)
	mux.HandleFunc("POST /api/people", h.addPerson)
	mux.HandleFunc("DELETE /api/people/{id}", h.deletePerson)
	mux.HandleFunc("DELETE /api/people", h.deleteAllPeople)

	mux.HandleFunc("GET /api/reminders", h.listReminders)
	mux.HandleFunc("POST /api/reminders", h.addReminder)
	mux.HandleFunc("DELETE /api/reminders/{id}", h.deleteReminder)
	mux.HandleFunc("DELETE /api/reminders", h.deleteAllReminders)

	mux.HandleFunc("GET /api/settings", h.getSettings)
	mux.HandleFunc("PUT /api/settings", h.updateSettings)

	mux.HandleFunc("GET /api/notifications", h.listNotifications)
	mux.HandleFunc("POST /api/notifications/test", h.testNotification)
	mux.HandleFunc("DELETE /api/notifications", h.cancelNotifications)

	mux.HandleFunc("DELETE /api/data", h.resetAll)
}

func (h *APIHandler) listPeople(w http.ResponseWriter, r *http.Request) {
	people, err := h.people.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}

func (h *APIHandler) addPerson(w http.ResponseWriter, r *http.Request) {
	var in domain.NewPersonInput
	if !h.decode(w, r, &in) {
		return
	}
	p, err := h.people.Add(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *APIHandler) deletePerson(w http.ResponseWriter, r *http.Request) {
	if err := h.people.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) deleteAllPeople(w http.ResponseWriter, r *http.Request) {
	if err := h.people.DeleteAll(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) listReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.reminders.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reminders)
}

func (h *APIHandler) addReminder(w http.ResponseWriter, r *http.Request) {
	var in domain.NewReminderInput
	if !h.decode(w, r, &in) {
		return
	}
	rem, err := h.reminders.Add(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

func (h *APIHandler) deleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := h.reminders.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) deleteAllReminders(w http.ResponseWriter, r *http.Request) {
	if err := h.reminders.DeleteAll(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *APIHandler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var patch app.SettingsPatch
	if !h.decode(w, r, &patch) {
		return
	}
	s, err := h.settings.Update(r.Context(), patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *APIHandler) listNotifications(w http.ResponseWriter, r *http.Request) {
	pending, err := h.dispatcher.Scheduled(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pending == nil {
		pending = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, pending)
}

type testNotificationRequest struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Seconds int    `json:"seconds"`
}

func (h *APIHandler) testNotification(w http.ResponseWriter, r *http.Request) {
	var req testNotificationRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	n, err := h.dispatcher.ScheduleTest(r.Context(), req.Title, req.Body, req.Seconds)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, n)
}

func (h *APIHandler) cancelNotifications(w http.ResponseWriter, r *http.Request) {
	ids, err := h.dispatcher.CancelAll(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": ids})
}

func (h *APIHandler) resetAll(w http.ResponseWriter, r *http.Request) {
	if err := app.ResetAll(r.Context(), h.people, h.reminders, h.settings, h.dispatcher); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "err", err)
	}
	writeJSON(w, status, errorPayload{Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPersonNotFound), errors.Is(err, domain.ErrReminderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPerson), errors.Is(err, domain.ErrInvalidReminder), errors.Is(err, domain.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRosterUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
