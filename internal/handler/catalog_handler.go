package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-planner-api/internal/dto"
	"github.com/noah-isme/course-planner-api/internal/planner"
	"github.com/noah-isme/course-planner-api/internal/service"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/response"
)

const maxCatalogUpload = 8 << 20

type catalogBrowser interface {
	Terms(ctx context.Context) ([]dto.CatalogTermResponse, error)
	ListCourses(ctx context.Context, term string, query dto.CourseListQuery) ([]dto.CourseSummary, error)
	GetCourse(ctx context.Context, term, code string) (*planner.Course, error)
	Import(ctx context.Context, term string, coursesYAML, lessonsCSV []byte) (*dto.CatalogImportResponse, error)
}

// CatalogHandler exposes the course catalogue.
type CatalogHandler struct {
	service catalogBrowser
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// Terms godoc
// @Summary List catalogue terms
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/terms [get]
func (h *CatalogHandler) Terms(c *gin.Context) {
	terms, err := h.service.Terms(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, terms, nil)
}

// Courses godoc
// @Summary List the courses of a term
// @Tags Catalog
// @Produce json
// @Param term path string true "Term"
// @Param q query string false "Code or title search"
// @Param programmes query []string false "Programme codes, repeated or comma separated"
// @Param offerable query bool false "Only courses with an eligible lesson"
// @Success 200 {object} response.Envelope
// @Router /catalog/terms/{term}/courses [get]
func (h *CatalogHandler) Courses(c *gin.Context) {
	var query dto.CourseListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid course query"))
		return
	}
	query.Programmes = splitList(query.Programmes)
	if len(query.Programmes) == 0 {
		if claims := claimsFromContext(c); claims != nil {
			query.Programmes = claims.Programmes
		}
	}
	courses, err := h.service.ListCourses(c.Request.Context(), c.Param("term"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil, map[string]interface{}{"count": len(courses)})
}

// Course godoc
// @Summary Get a course with its lessons
// @Tags Catalog
// @Produce json
// @Param term path string true "Term"
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /catalog/terms/{term}/courses/{code} [get]
func (h *CatalogHandler) Course(c *gin.Context) {
	course, err := h.service.GetCourse(c.Request.Context(), c.Param("term"), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Import godoc
// @Summary Replace the catalogue of a term
// @Description Multipart upload of a courses YAML document ("courses") and a lessons CSV table ("lessons").
// @Tags Catalog
// @Accept multipart/form-data
// @Produce json
// @Param term path string true "Term"
// @Param courses formData file true "Courses YAML"
// @Param lessons formData file true "Lessons CSV"
// @Success 201 {object} response.Envelope
// @Router /catalog/terms/{term}/import [post]
func (h *CatalogHandler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*maxCatalogUpload)
	coursesYAML, err := readFormFile(c, "courses")
	if err != nil {
		response.Error(c, err)
		return
	}
	lessonsCSV, err := readFormFile(c, "lessons")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Import(c.Request.Context(), c.Param("term"), coursesYAML, lessonsCSV)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func readFormFile(c *gin.Context, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, appErrors.Invalid(err, fmt.Sprintf("%s file is required", field))
	}
	if header.Size > maxCatalogUpload {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s file exceeds %d bytes", field, maxCatalogUpload))
	}
	return readMultipart(header)
}

func readMultipart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxCatalogUpload+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	return data, nil
}

// splitList accepts repeated and comma separated query values alike.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
