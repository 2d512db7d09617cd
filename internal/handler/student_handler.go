package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/presenca-api/internal/models"
	"github.com/noah-isme/presenca-api/internal/service"
	appErrors "github.com/noah-isme/presenca-api/pkg/errors"
	"github.com/noah-isme/presenca-api/pkg/response"
)

type studentService interface {
	List(ctx context.Context) ([]models.Student, error)
	ListSortedByName(ctx context.Context) ([]models.Student, error)
	Get(ctx context.Context, id int64) (*models.Student, error)
	Create(ctx context.Context, req service.CreateStudentRequest) (*models.Student, error)
	Update(ctx context.Context, id int64, req service.UpdateStudentRequest) (*models.Student, error)
	Delete(ctx context.Context, id int64) error
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Tags Alunos
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /alunos [get]
func (h *StudentHandler) List(c *gin.Context) {
	students, err := h.students.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, students)
}

// ListSortedByName godoc
// @Summary List students ordered by name
// @Tags Alunos
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /alunos/sortedByName [get]
func (h *StudentHandler) ListSortedByName(c *gin.Context) {
	students, err := h.students.ListSortedByName(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, students)
}

// Get godoc
// @Summary Get student
// @Tags Alunos
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /alunos/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	student, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, student)
}

// Create godoc
// @Summary Create student
// @Tags Alunos
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /alunos [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	student, err := h.students.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Description Fields may be sent as a JSON body or as query parameters; body values win.
// @Tags Alunos
// @Accept json
// @Produce json
// @Param id path int true "Student ID"
// @Param name query string false "New name"
// @Param number query int false "New number"
// @Param payload body service.UpdateStudentRequest false "Student payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /alunos/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req service.UpdateStudentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err))
			return
		}
	}
	if name, found := c.GetQuery("name"); found && req.Name == nil {
		req.Name = &name
	}
	if raw, found := c.GetQuery("number"); found && req.Number == nil {
		number, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Validation(err, "number must be an integer"))
			return
		}
		req.Number = &number
	}

	student, err := h.students.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student)
}

// Delete godoc
// @Summary Delete student
// @Tags Alunos
// @Param id path int true "Student ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /alunos/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.students.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
