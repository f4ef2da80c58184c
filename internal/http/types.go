package http

import "github.com/fyrsmithlabs/cunzhi/internal/capability"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string          `json:"status"`
	Theme  string          `json:"theme"`
	Server string          `json:"server"`
	Tools  map[string]bool `json:"tools"`
}

// ToolsResponse is the response body for GET /api/v1/tools.
type ToolsResponse struct {
	Theme string                  `json:"theme"`
	Tools []capability.ToolConfig `json:"tools"`
}

// SetEnabledRequest is the request body for PUT /api/v1/tools/:id.
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// ToolResponse is the response body for a single tool update.
type ToolResponse struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}
