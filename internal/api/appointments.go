package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"appointment-booking-api/internal/middleware"
	"appointment-booking-api/internal/model"
	"appointment-booking-api/internal/scheduling"
)

type createAppointmentRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

func (a *API) createAppointment(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerFrom(r.Context())
	if !ok {
		a.fail(w, http.StatusUnauthorized, "login required")
		return
	}

	var req createAppointmentRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Date == "" || req.Time == "" {
		a.fail(w, http.StatusBadRequest, "date and time required")
		return
	}

	date, at, err := scheduling.ParseSlot(req.Date, req.Time)
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	appt, err := a.svc.CreateAppointment(date, at, owner)
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	a.respond(w, http.StatusCreated, appt)
}

func (a *API) listAppointments(w http.ResponseWriter, r *http.Request) {
	list := a.svc.ListAppointments()
	if mine, _ := strconv.ParseBool(r.URL.Query().Get("mine")); mine {
		owner, ok := middleware.OwnerFrom(r.Context())
		if !ok {
			a.fail(w, http.StatusUnauthorized, "login required")
			return
		}
		list = scheduling.OwnedBy(list, owner)
	}
	a.respond(w, http.StatusOK, list)
}

type cancelResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

func (a *API) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		a.fail(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	if !a.svc.CancelAppointment(id) {
		a.fail(w, http.StatusNotFound, "appointment not found")
		return
	}
	a.respond(w, http.StatusOK, cancelResponse{Message: "appointment cancelled", ID: id})
}

type slotsResponse struct {
	Date  model.Date        `json:"date"`
	Slots []model.TimeOfDay `json:"slots"`
}

func (a *API) availableSlots(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q, err := scheduling.ParseSlotQuery(v.Get("date"), v.Get("start"), v.Get("end"), v.Get("step"), a.hours)
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	a.respond(w, http.StatusOK, slotsResponse{Date: q.Date, Slots: a.svc.Slots(q)})
}
