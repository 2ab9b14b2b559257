package handlers

import (
	"net/http"

	"chatkit/internal/provider"
)

// ToolsHandler lists the tool definitions offered to the model.
func ToolsHandler(defs []provider.Tool) http.HandlerFunc {
	if defs == nil {
		defs = []provider.Tool{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		SendJSON(w, http.StatusOK, map[string]any{"tools": defs})
	}
}
