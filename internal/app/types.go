package app

import "github.com/nourabuild/user-directory/internal/sdk/models"

// UserResponse is a user with the avatar to display resolved.
type UserResponse struct {
	models.User
	DisplayAvatar  string            `json:"display_avatar"`
	AvatarVariants map[string]string `json:"avatar_variants,omitempty"`
}

type ListResponse struct {
	Users   []UserResponse `json:"users"`
	Total   int            `json:"total"`
	Matched int            `json:"matched"`
	Page    int            `json:"page,omitempty"`
	Pages   int            `json:"pages,omitempty"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type LivenessResponse struct {
	Status     string `json:"status"`
	Host       string `json:"host"`
	GOMAXPROCS int    `json:"gomaxprocs"`
	Sessions   int    `json:"sessions"`
}

type ReadinessResponse struct {
	Status   string            `json:"status"`
	Database map[string]string `json:"database"`
	Storage  map[string]string `json:"storage"`
}
