package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
	index  *database.TemplateIndex
}

// NewConfigHandler creates a new config handler. index may be nil.
func NewConfigHandler(cfg *config.Config, index *database.TemplateIndex) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		index:  index,
	}
}

// ConfigResponse represents the effective matching configuration
type ConfigResponse struct {
	Model        string  `json:"model"`
	Threshold    float64 `json:"threshold"`
	MinDetScore  float64 `json:"min_det_score"`
	MinFaceSize  int     `json:"min_face_size"`
	Dim          int     `json:"dim"`
	Timezone     string  `json:"timezone"`
	Persistent   bool    `json:"persistent"`
	IndexedFaces int     `json:"indexed_faces"`
	AuthRequired bool    `json:"auth_required"`
}

// Get returns the effective configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	indexed := 0
	if h.index != nil {
		indexed = h.index.Count()
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		Model:        h.config.Matching.Model,
		Threshold:    h.config.Matching.Threshold,
		MinDetScore:  h.config.Matching.MinDetScore,
		MinFaceSize:  h.config.Matching.MinFaceSize,
		Dim:          h.config.Embedding.Dim,
		Timezone:     h.config.Attendance.Timezone,
		Persistent:   h.config.Database.URL != "",
		IndexedFaces: indexed,
		AuthRequired: h.config.Web.APIToken != "",
	})
}
