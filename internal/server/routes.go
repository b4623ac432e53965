package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"rail-reservation/internal/apperror"
	"rail-reservation/internal/models"
)

// RegisterRoutes sets up the router with all endpoints.
func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, http.StatusNotFound, apperror.KindNotFound.String(), "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Get("/health", s.healthHandler)

	r.Post("/signup", s.SignupHandler)
	r.Post("/login", s.LoginHandler)

	r.Get("/stations", s.ListStationsHandler)
	r.Get("/search_trains", s.SearchTrainsHandler)

	r.Post("/book_ticket", s.BookTicketHandler)
	r.Post("/cancel_ticket", s.CancelTicketHandler)
	r.Get("/users/{userID}/bookings", s.ListUserBookingsHandler)

	return r
}

// healthHandler provides health information.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResp, _ := json.Marshal(s.db.Health())
	w.Header().Set("Content-Type", "application/json")
	w.Write(jsonResp)
}

type signupResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

// SignupHandler registers a new user.
func (s *Server) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.accounts.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, signupResponse{Message: "user registered successfully", UserID: user.ID})
}

// LoginHandler checks credentials and returns the user profile.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.accounts.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (s *Server) ListStationsHandler(w http.ResponseWriter, r *http.Request) {
	stations, err := s.bookings.ListStations(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stations)
}

// SearchTrainsHandler answers GET /search_trains?from=&to=&date=.
func (s *Server) SearchTrainsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	trains, err := s.bookings.SearchAvailable(r.Context(), q.Get("from"), q.Get("to"), q.Get("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trains)
}

type bookTicketResponse struct {
	Message string `json:"message"`
	*models.BookingResult
}

// BookTicketHandler creates a booking for all passengers in the request.
func (s *Server) BookTicketHandler(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.bookings.CreateBooking(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bookTicketResponse{Message: "ticket booked successfully", BookingResult: result})
}

// CancelTicketHandler cancels a booking owned by the requesting user.
func (s *Server) CancelTicketHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CancelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.bookings.CancelBooking(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "ticket cancelled successfully"})
}

func (s *Server) ListUserBookingsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, r, apperror.Wrap(apperror.KindValidation, err, "user id must be a number"))
		return
	}

	bookings, err := s.bookings.ListBookings(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}
