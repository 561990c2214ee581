package models

import "github.com/google/uuid"

// Food is a nutrition record from the data API, passed through for display.
type Food struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand,omitempty"`
	ServingSize string    `json:"serving_size,omitempty"`
	Calories    float64   `json:"calories"`
	Protein     float64   `json:"protein"`
	Carbs       float64   `json:"carbs"`
	Fat         float64   `json:"fat"`
	Fiber       float64   `json:"fiber,omitempty"`
	Sodium      float64   `json:"sodium,omitempty"`
}
