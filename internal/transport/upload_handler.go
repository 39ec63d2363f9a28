package transport

import (
	"net/http"

	"tienda-pos/internal/middleware"
	"tienda-pos/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UploadResponse carries the public URL of a stored image
type UploadResponse struct {
	URL string `json:"url"`
}

// UploadHandler handles product image uploads
type UploadHandler struct {
	images storage.ImageStore
	logger *zap.Logger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(images storage.ImageStore, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{images: images, logger: logger}
}

// RegisterRoutes registers the upload routes
func (h *UploadHandler) RegisterRoutes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/uploads", func(r chi.Router) {
		r.Use(adminOnly)
		r.Post("/", h.Upload)
	})
}

// Upload handles a multipart image upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	url, err := h.images.Save(file, header)
	if err != nil {
		switch err {
		case storage.ErrImageTooLarge:
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "image exceeds the maximum allowed size")
		case storage.ErrNotAnImage:
			middleware.RespondWithError(w, http.StatusUnsupportedMediaType, "uploaded file is not an image")
		default:
			h.logger.Error("Image upload failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to store image")
		}
		return
	}

	h.logger.Info("Image uploaded", zap.String("url", url))
	middleware.RespondWithJSON(w, http.StatusCreated, UploadResponse{URL: url})
}
