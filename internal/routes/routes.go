package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/presenca-api/internal/handler"
)

// Handlers groups the HTTP handlers mounted under the API prefix.
type Handlers struct {
	Students   *handler.StudentHandler
	Attendance *handler.AttendanceHandler
	Metrics    *handler.MetricsHandler
}

// SetupRoutes mounts ops endpoints at the root and domain endpoints under prefix.
func SetupRoutes(r *gin.Engine, prefix string, h Handlers) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix)

	alunos := api.Group("/alunos")
	{
		alunos.GET("", h.Students.List)
		alunos.GET("/sortedByName", h.Students.ListSortedByName)
		alunos.GET("/:id", h.Students.Get)
		alunos.POST("", h.Students.Create)
		alunos.PUT("/:id", h.Students.Update)
		alunos.DELETE("/:id", h.Students.Delete)
	}

	presencas := api.Group("/presencas")
	{
		presencas.GET("", h.Attendance.ListAll)
		presencas.POST("/marcar/:alunoId", h.Attendance.MarkNow)
		presencas.POST("/marcar-data", h.Attendance.MarkAt)
		presencas.GET("/aluno/:alunoId", h.Attendance.ListByStudent)
		presencas.GET("/aluno/:alunoId/periodo", h.Attendance.ListByRange)
		presencas.GET("/aluno/:alunoId/relatorio", h.Attendance.Report)
		presencas.GET("/verificar/:alunoId/:date", h.Attendance.Verify)
		presencas.GET("/data/:date", h.Attendance.ListByDate)
		presencas.GET("/:id", h.Attendance.Get)
		presencas.DELETE("/:id", h.Attendance.Delete)
	}
}
