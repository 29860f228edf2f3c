package http

import (
	"net/http"

	"clinic-appointment-service/internal/delivery/http/handler"
	"clinic-appointment-service/internal/delivery/http/middleware"
	"clinic-appointment-service/internal/domain/entity"

	"github.com/gorilla/mux"
)

type Router struct {
	router          *mux.Router
	doctorHandler   *handler.DoctorHandler
	slotHandler     *handler.SlotHandler
	bookingHandler  *handler.BookingHandler
	paymentHandler  *handler.PaymentHandler
	auditLogHandler *handler.AuditLogHandler
	authMiddleware  *middleware.AuthMiddleware
	corsMiddleware  *middleware.CORSMiddleware
}

func NewRouter(
	doctorHandler *handler.DoctorHandler,
	slotHandler *handler.SlotHandler,
	bookingHandler *handler.BookingHandler,
	paymentHandler *handler.PaymentHandler,
	auditLogHandler *handler.AuditLogHandler,
	authMiddleware *middleware.AuthMiddleware,
	corsMiddleware *middleware.CORSMiddleware,
) *Router {
	return &Router{
		router:          mux.NewRouter(),
		doctorHandler:   doctorHandler,
		slotHandler:     slotHandler,
		bookingHandler:  bookingHandler,
		paymentHandler:  paymentHandler,
		auditLogHandler: auditLogHandler,
		authMiddleware:  authMiddleware,
		corsMiddleware:  corsMiddleware,
	}
}

func (r *Router) Setup() *mux.Router {
	// API versioning
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	// Catalog routes (public)
	api.HandleFunc("/doctors", r.doctorHandler.GetDoctors).Methods(http.MethodGet)
	api.HandleFunc("/doctors/{doctorId}", r.doctorHandler.GetDoctor).Methods(http.MethodGet)
	api.HandleFunc("/doctors/{doctorId}/slots", r.slotHandler.GetAvailableSlots).Methods(http.MethodGet)

	// Payment gateway callback. The gateway authenticates out of band, not
	// with patient bearer tokens.
	api.HandleFunc("/payments/callback", r.paymentHandler.HandleCallback).Methods(http.MethodPost)

	// Patient routes (protected - patient only)
	patient := api.PathPrefix("").Subrouter()
	patient.Use(r.authMiddleware.Authenticate)
	patient.Use(middleware.RequirePatient)
	patient.HandleFunc("/doctors/{doctorId}/slots/{slotId}/bookings", r.bookingHandler.CreateBooking).Methods(http.MethodPost)
	patient.HandleFunc("/patients/bookings", r.bookingHandler.GetMyBookings).Methods(http.MethodGet)

	// Booking mutations (patient owns it, or admin)
	bookings := api.PathPrefix("/bookings").Subrouter()
	bookings.Use(r.authMiddleware.Authenticate)
	bookings.Use(middleware.RequireRole(entity.RoleAdmin, entity.RolePatient))
	bookings.HandleFunc("/{id}/cancel", r.bookingHandler.CancelBooking).Methods(http.MethodPatch)
	bookings.HandleFunc("/{id}/reschedule", r.bookingHandler.RescheduleBooking).Methods(http.MethodPatch)

	// Admin routes (protected - admin only)
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(r.authMiddleware.Authenticate)
	admin.Use(middleware.RequireAdmin)

	// Doctor management (admin)
	admin.HandleFunc("/doctors", r.doctorHandler.CreateDoctor).Methods(http.MethodPost)

	// Slot management (admin)
	admin.HandleFunc("/doctors/{doctorId}/slots", r.slotHandler.CreateSlots).Methods(http.MethodPost)
	admin.HandleFunc("/doctors/{doctorId}/slots", r.slotHandler.GetSlotsByDoctor).Methods(http.MethodGet)
	admin.HandleFunc("/slots/{slotId}", r.slotHandler.DeleteSlot).Methods(http.MethodDelete)

	// Audit trail (admin)
	admin.HandleFunc("/audit-logs", r.auditLogHandler.GetAllAuditLogs).Methods(http.MethodGet)

	// Add CORS middleware
	r.router.Use(r.corsMiddleware.Handle)

	return r.router
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
