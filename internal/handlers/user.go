package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	dom "github.com/birlikkoshan/todohub/internal/domain"
	"github.com/birlikkoshan/todohub/internal/dto"
	"github.com/birlikkoshan/todohub/internal/service"
)

type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Register mounts the user routes on g.
func (h *UserHandler) Register(g *gin.RouterGroup) {
	g.POST("/users", h.Create)
	g.GET("/users", h.List)
	g.GET("/users/:id", h.GetByID)
	g.PATCH("/users/:id", h.Update)
	g.DELETE("/users/:id", h.Delete)
}

// Create godoc
// @Summary      Create a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateUserRequest  true  "User body"
// @Success      201   {object}  dto.UserResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.svc.Create(c.Request.Context(), service.CreateUserInput{Email: req.Email, Name: req.Name})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userToResponse(u))
}

// List godoc
// @Summary      List all users
// @Tags         users
// @Produce      json
// @Success      200  {array}   dto.UserResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /users [get]
func (h *UserHandler) List(c *gin.Context) {
	list, err := h.svc.FindAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dto.UserResponse, len(list))
	for i := range list {
		out[i] = userToResponse(list[i])
	}
	c.JSON(http.StatusOK, out)
}

// GetByID godoc
// @Summary      Get a user by ID
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User ID"  format(uuid)
// @Success      200  {object}  dto.UserResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /users/{id} [get]
func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	u, err := h.svc.FindOne(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(u))
}

// Update godoc
// @Summary      Update a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id    path      string                 true  "User ID"  format(uuid)
// @Param        body  body      dto.UpdateUserRequest  true  "Partial update"
// @Success      200   {object}  dto.UserResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /users/{id} [patch]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.svc.Update(c.Request.Context(), id, service.UpdateUserInput{Email: req.Email, Name: req.Name})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(u))
}

// Delete godoc
// @Summary      Delete a user
// @Description  Deletes the user and returns it. Users who still own todos cannot be deleted (400).
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User ID"  format(uuid)
// @Success      200  {object}  dto.UserResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	u, err := h.svc.Remove(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(u))
}

func userToResponse(u dom.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
