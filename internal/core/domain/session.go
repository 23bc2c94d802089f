package domain

import "time"

// User is a PIN-authenticated identity. Credentials live in the same durable
// store as records so restarts do not reset auth.
type User struct {
	Username  string    `json:"username"`
	PIN       string    `json:"pin"`
	CreatedAt time.Time `json:"created_at"`
}

// AISettings is the durable inference configuration, stored alongside
// records rather than in process memory.
type AISettings struct {
	Host        string `json:"host"`
	LogicModel  string `json:"logic_model"`
	VisionModel string `json:"vision_model"`
}

// DefaultAISettings seeds the settings row on first start.
func DefaultAISettings() AISettings {
	return AISettings{
		Host:        "http://localhost:11434",
		LogicModel:  "gemma3:4b",
		VisionModel: "llava",
	}
}

// Stats summarizes a user's records for the dashboard.
type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByBucket   map[string]int `json:"by_time"`
	ByDocType  map[string]int `json:"by_document_type,omitempty"`
	AvgScore   float64        `json:"avg_score"`
	LastUpload *time.Time     `json:"last_upload,omitempty"`
}
