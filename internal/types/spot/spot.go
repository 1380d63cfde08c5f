package spot

import (
	"time"

	"github.com/google/uuid"
)

type Spot struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Difficulty string    `json:"difficulty"`
	Tricks     []string  `json:"tricks"`
	ImageURL   *string   `json:"image_url,omitempty"`
	VideoURL   *string   `json:"video_url,omitempty"`
	AddedBy    string    `json:"added_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateSpotRequest struct {
	Name       string   `json:"name"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Difficulty string   `json:"difficulty"`
	Tricks     []string `json:"tricks,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	VideoURL   string   `json:"video_url,omitempty"`
}

// ShareResponse carries a QR deep link for a spot.
type ShareResponse struct {
	SpotID       uuid.UUID `json:"spot_id"`
	DeepLink     string    `json:"deep_link"`
	QrCodeBase64 string    `json:"qr_code_base64"`
}
