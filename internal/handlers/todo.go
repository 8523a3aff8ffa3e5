package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	dom "github.com/birlikkoshan/todohub/internal/domain"
	"github.com/birlikkoshan/todohub/internal/dto"
	"github.com/birlikkoshan/todohub/internal/service"
)

type TodoHandler struct {
	svc *service.TodoService
}

func NewTodoHandler(svc *service.TodoService) *TodoHandler {
	return &TodoHandler{svc: svc}
}

// Register mounts the todo routes on g.
func (h *TodoHandler) Register(g *gin.RouterGroup) {
	g.POST("/todos", h.Create)
	g.GET("/todos", h.List)
	g.GET("/todos/:id", h.GetByID)
	g.PATCH("/todos/:id", h.Update)
	g.DELETE("/todos/:id", h.Delete)
}

// Create godoc
// @Summary      Create a todo
// @Tags         todos
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateTodoRequest  true  "Todo body"
// @Success      201   {object}  dto.TodoResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /todos [post]
func (h *TodoHandler) Create(c *gin.Context) {
	var req dto.CreateTodoRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.svc.Create(c.Request.Context(), service.CreateTodoInput{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		Priority:    priorityPtr(req.Priority),
		StartDate:   req.StartDate.Ptr(),
		DueDate:     req.DueDate.Ptr(),
		UserID:      req.UserID,
		TagIDs:      req.TagIDs,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, todoToResponse(t))
}

// List godoc
// @Summary      List all todos
// @Tags         todos
// @Produce      json
// @Success      200  {array}   dto.TodoResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos [get]
func (h *TodoHandler) List(c *gin.Context) {
	list, err := h.svc.FindAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, todosToResponses(list))
}

// GetByID godoc
// @Summary      Get a todo by ID
// @Tags         todos
// @Produce      json
// @Param        id   path      string  true  "Todo ID"  format(uuid)
// @Success      200  {object}  dto.TodoResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos/{id} [get]
func (h *TodoHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.FindOne(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, todoToResponse(t))
}

// Update godoc
// @Summary      Update a todo
// @Tags         todos
// @Accept       json
// @Produce      json
// @Param        id    path      string                 true  "Todo ID"  format(uuid)
// @Param        body  body      dto.UpdateTodoRequest  true  "Partial update"
// @Success      200   {object}  dto.TodoResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /todos/{id} [patch]
func (h *TodoHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateTodoRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.svc.Update(c.Request.Context(), id, service.UpdateTodoInput{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		Priority:    priorityPtr(req.Priority),
		StartDate:   req.StartDate.Ptr(),
		DueDate:     req.DueDate.Ptr(),
		UserID:      req.UserID,
		TagIDs:      req.TagIDs,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, todoToResponse(t))
}

// Delete godoc
// @Summary      Delete a todo
// @Description  Returns the deleted todo.
// @Tags         todos
// @Produce      json
// @Param        id   path      string  true  "Todo ID"  format(uuid)
// @Success      200  {object}  dto.TodoResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos/{id} [delete]
func (h *TodoHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.Remove(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, todoToResponse(t))
}

func priorityPtr(s *string) *dom.Priority {
	if s == nil {
		return nil
	}
	p := dom.Priority(*s)
	return &p
}

func todoToResponse(t dom.Todo) dto.TodoResponse {
	return dto.TodoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		StartDate:   t.StartDate,
		DueDate:     t.DueDate,
		UserID:      t.UserID,
		TagIDs:      t.TagIDs,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func todosToResponses(list []dom.Todo) []dto.TodoResponse {
	out := make([]dto.TodoResponse, len(list))
	for i := range list {
		out[i] = todoToResponse(list[i])
	}
	return out
}
