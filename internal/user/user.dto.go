package user

type CreateProfileRequest struct {
	ClerkID  string `json:"clerkId" validate:"required"`
	Username string `json:"username,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type UpdateProfileRequest struct {
	Username string `json:"username,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}
