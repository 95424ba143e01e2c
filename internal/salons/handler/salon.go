package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"trimly/internal/salons/service"
	apperrors "trimly/pkg/errors"
	"trimly/pkg/geo"
	httputil "trimly/pkg/http"
	"trimly/pkg/logger"
	"trimly/pkg/model"
)

// maxPhotoBytes caps a single photo upload; the global request size limit
// is tuned for JSON bodies and would reject most images.
const maxPhotoBytes = 8 << 20

type SalonHandler struct {
	service       service.SalonService
	log           *logger.Logger
	defaultRadius float64
}

func NewSalonHandler(service service.SalonService, log *logger.Logger, defaultRadiusKm float64) *SalonHandler {
	return &SalonHandler{
		service:       service,
		log:           log,
		defaultRadius: defaultRadiusKm,
	}
}

func (h *SalonHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var salon model.Salon
	if err := json.NewDecoder(r.Body).Decode(&salon); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), &salon); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, salon); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *SalonHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	salon, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, salon); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func (h *SalonHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "error", writeErr)
		}
		return
	}

	salons, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, salons, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "error", err)
	}
}

func (h *SalonHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.SalonUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "error", writeErr)
		}
		return
	}

	updated, err := h.service.Update(r.Context(), ps.ByName("id"), &updates)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, updated); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "error", err)
	}
}

func (h *SalonHandler) Nearby(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	lat, err := httputil.ExtractFloat(r, "lat")
	if err != nil {
		h.writeErr(w, "Nearby", err)
		return
	}
	lng, err := httputil.ExtractFloat(r, "lng")
	if err != nil {
		h.writeErr(w, "Nearby", err)
		return
	}

	radius := h.defaultRadius
	if r.URL.Query().Get("radius_km") != "" {
		radius, err = httputil.ExtractFloat(r, "radius_km")
		if err != nil {
			h.writeErr(w, "Nearby", err)
			return
		}
	}

	results, err := h.service.Nearby(r.Context(), geo.Point{Latitude: lat, Longitude: lng}, radius)
	if err != nil {
		h.writeErr(w, "Nearby", err)
		return
	}

	if err := httputil.WriteSuccess(w, results); err != nil {
		h.log.Error("failed to write success response", "handler", "Nearby", "error", err)
	}
}

func (h *SalonHandler) UploadPhoto(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		h.writeErr(w, "UploadPhoto", apperrors.InvalidInput("Invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		h.writeErr(w, "UploadPhoto", apperrors.InvalidInput("Missing 'photo' form field"))
		return
	}
	defer file.Close()

	url, err := h.service.AttachPhoto(r.Context(), ps.ByName("id"), header.Filename, file)
	if err != nil {
		h.writeErr(w, "UploadPhoto", err)
		return
	}

	if err := httputil.WriteCreated(w, map[string]string{"url": url}); err != nil {
		h.log.Error("failed to write created response", "handler", "UploadPhoto", "error", err)
	}
}

func (h *SalonHandler) AddReview(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var review model.Review
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "AddReview", "error", writeErr)
		}
		return
	}
	review.SalonID = ps.ByName("id")

	if err := h.service.AddReview(r.Context(), &review); err != nil {
		h.writeErr(w, "AddReview", err)
		return
	}

	if err := httputil.WriteCreated(w, review); err != nil {
		h.log.Error("failed to write created response", "handler", "AddReview", "error", err)
	}
}

func (h *SalonHandler) ListReviews(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeErr(w, "ListReviews", err)
		return
	}

	reviews, total, err := h.service.ListReviews(r.Context(), ps.ByName("id"), limit, offset)
	if err != nil {
		h.writeErr(w, "ListReviews", err)
		return
	}

	if err := httputil.WritePaginated(w, reviews, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListReviews", "error", err)
	}
}

func (h *SalonHandler) writeErr(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "error", writeErr)
	}
}

func (h *SalonHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/salons", h.Create)
	router.GET("/api/v1/salons", h.GetAll)
	router.GET("/api/v1/salons/nearby", h.Nearby)
	router.GET("/api/v1/salons/id/:id", h.GetByID)
	router.PATCH("/api/v1/salons/id/:id", h.Update)
	router.POST("/api/v1/salons/id/:id/photos", h.UploadPhoto)
	router.POST("/api/v1/salons/id/:id/reviews", h.AddReview)
	router.GET("/api/v1/salons/id/:id/reviews", h.ListReviews)
}
