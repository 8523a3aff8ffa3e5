package dto

import "time"

type CreateTagRequest struct {
	Name  string  `json:"name" example:"Work"`
	Color *string `json:"color" example:"#FF0000"`
}

type UpdateTagRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

type TagResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
