package httpapi

import (
	"net/http"
	"path/filepath"

	"jobintel-engine/internal/config"
)

type ConfigHandler struct {
	Cfg  config.Config
	Path string
}

func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	abs, _ := filepath.Abs(h.Path)
	WriteJSON(w, http.StatusOK, map[string]any{"path": abs, "config": h.Cfg})
}

func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	_, vr := config.NormalizeAndValidate(h.Cfg)
	WriteJSON(w, http.StatusOK, vr)
}
