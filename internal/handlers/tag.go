package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	dom "github.com/birlikkoshan/todohub/internal/domain"
	"github.com/birlikkoshan/todohub/internal/dto"
	"github.com/birlikkoshan/todohub/internal/service"
)

type TagHandler struct {
	svc *service.TagService
}

func NewTagHandler(svc *service.TagService) *TagHandler {
	return &TagHandler{svc: svc}
}

// Register mounts the tag routes on g.
func (h *TagHandler) Register(g *gin.RouterGroup) {
	g.POST("/tags", h.Create)
	g.GET("/tags", h.List)
	g.GET("/tags/:id", h.GetByID)
	g.PATCH("/tags/:id", h.Update)
	g.DELETE("/tags/:id", h.Delete)
}

// Create godoc
// @Summary      Create a tag
// @Tags         tags
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateTagRequest  true  "Tag body"
// @Success      201   {object}  dto.TagResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /tags [post]
func (h *TagHandler) Create(c *gin.Context) {
	var req dto.CreateTagRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.svc.Create(c.Request.Context(), service.CreateTagInput{Name: req.Name, Color: req.Color})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tagToResponse(t))
}

// List godoc
// @Summary      List all tags
// @Tags         tags
// @Produce      json
// @Success      200  {array}   dto.TagResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /tags [get]
func (h *TagHandler) List(c *gin.Context) {
	list, err := h.svc.FindAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dto.TagResponse, len(list))
	for i := range list {
		out[i] = tagToResponse(list[i])
	}
	c.JSON(http.StatusOK, out)
}

// GetByID godoc
// @Summary      Get a tag by ID
// @Tags         tags
// @Produce      json
// @Param        id   path      string  true  "Tag ID"  format(uuid)
// @Success      200  {object}  dto.TagResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /tags/{id} [get]
func (h *TagHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.FindOne(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tagToResponse(t))
}

// Update godoc
// @Summary      Update a tag
// @Tags         tags
// @Accept       json
// @Produce      json
// @Param        id    path      string                true  "Tag ID"  format(uuid)
// @Param        body  body      dto.UpdateTagRequest  true  "Partial update"
// @Success      200   {object}  dto.TagResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /tags/{id} [patch]
func (h *TagHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateTagRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.svc.Update(c.Request.Context(), id, service.UpdateTagInput{Name: req.Name, Color: req.Color})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tagToResponse(t))
}

// Delete godoc
// @Summary      Delete a tag
// @Description  Detaches the tag from every todo and returns it.
// @Tags         tags
// @Produce      json
// @Param        id   path      string  true  "Tag ID"  format(uuid)
// @Success      200  {object}  dto.TagResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /tags/{id} [delete]
func (h *TagHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.Remove(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tagToResponse(t))
}

func tagToResponse(t dom.Tag) dto.TagResponse {
	return dto.TagResponse{
		ID:        t.ID,
		Name:      t.Name,
		Color:     t.Color,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
