package dto

import "time"

type CreateUserRequest struct {
	Email string  `json:"email" example:"ann@example.com"`
	Name  *string `json:"name" example:"Ann"`
}

type UpdateUserRequest struct {
	Email *string `json:"email"`
	Name  *string `json:"name"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
