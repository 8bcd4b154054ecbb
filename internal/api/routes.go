package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"appraisal_go_backend/internal/auth"
	apperrors "appraisal_go_backend/internal/errors"
	"appraisal_go_backend/internal/models"
	"appraisal_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// multipartOverhead is allowed on top of the file size limit for the other
// form fields and part headers.
const multipartOverhead = 1 << 20

// HealthCheck reports whether the backing store is reachable.
type HealthCheck func(ctx context.Context) error

func SetupRoutes(r *gin.Engine, researchService *services.ResearchService, userService *services.UserService, tokens *auth.TokenManager, health HealthCheck) {
	requireAuth := auth.AuthMiddleware(tokens, userService)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Research Paper Application API is running!"})
	})

	api := r.Group("/api")
	{
		api.GET("/health", healthHandler(health))

		users := api.Group("/users", requireAuth)
		users.GET("", listUsersHandler(userService))
		users.GET("/:id", getUserHandler(userService))

		research := api.Group("/research")
		research.GET("", listPapersHandler(researchService))
		research.POST("", createPaperHandler(researchService))
		research.GET("/stats", dashboardStatsHandler(researchService))
		research.GET("/bibtex", exportBibTeXHandler(researchService))
		research.POST("/upload", requireAuth, uploadPaperHandler(researchService))
		research.GET("/:id", getPaperHandler(researchService))
		research.GET("/:id/bibtex", exportBibTeXHandler(researchService))
		research.GET("/:id/file", downloadPaperFileHandler(researchService))
	}
}

// handleServiceError maps service sentinel errors to HTTP errors.
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrPaperNotFound):
		apperrors.HandleError(c, apperrors.New404Error("Research paper not found"))
	case errors.Is(err, services.ErrUserNotFound):
		apperrors.HandleError(c, apperrors.New404Error("User not found"))
	case errors.Is(err, services.ErrNoFile):
		apperrors.HandleError(c, apperrors.New400Error("No file uploaded"))
	case errors.Is(err, services.ErrUnsupportedFileType):
		apperrors.HandleError(c, apperrors.New400Error("Only PDF files are allowed"))
	case errors.Is(err, services.ErrFileNotFound):
		apperrors.HandleError(c, apperrors.New404Error("File not found"))
	case errors.Is(err, services.ErrFileTooLarge):
		apperrors.HandleError(c, apperrors.New413Error("File too large"))
	default:
		apperrors.HandleError(c, err)
	}
}

func healthHandler(health HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("Health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}

func listUsersHandler(userService *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := userService.ListUsers(c.Request.Context())
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func getUserHandler(userService *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := userService.GetUser(c.Request.Context(), c.Param("id"))
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func listPapersHandler(researchService *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		papers, err := researchService.ListPapers(c.Request.Context())
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, papers)
	}
}

func getPaperHandler(researchService *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		paper, err := researchService.GetPaper(c.Request.Context(), c.Param("id"))
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, paper)
	}
}

func createPaperHandler(researchService *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var paper models.Paper
		if err := c.ShouldBindJSON(&paper); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid request body").WithInternal(err))
			return
		}
		// Only uploads may reference a stored file.
		paper.FilePath = ""

		created, err := researchService.CreatePaper(c.Request.Context(), &paper)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func dashboardStatsHandler(researchService *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := researchService.DashboardStats(c.Request.Context())
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func exportBibTeXHandler(researchService *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := researchService.ExportBibTeX(c.Request.Context(), c.Param("id"))
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/x-bibtex; charset=utf-8", []byte(out))
	}
}

func downloadPaperFileHandler(researchService *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename, data, err := researchService.PaperFile(c.Request.Context(), c.Param("id"))
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, "application/pdf", data)
	}
}

func uploadPaperHandler(researchService *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error(""))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, researchService.MaxUploadBytes()+multipartOverhead)

		fileHeader, err := c.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			switch {
			case errors.As(err, &maxErr):
				handleServiceError(c, services.ErrFileTooLarge)
			case errors.Is(err, http.ErrMissingFile):
				handleServiceError(c, services.ErrNoFile)
			default:
				apperrors.HandleError(c, apperrors.New400Error("Invalid multipart form").WithInternal(err))
			}
			return
		}
		if fileHeader.Size > researchService.MaxUploadBytes() {
			handleServiceError(c, services.ErrFileTooLarge)
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}
		defer file.Close()

		paper, err := researchService.UploadPaper(c.Request.Context(), services.UploadPaperInput{
			Filename: fileHeader.Filename,
			File:     file,
			Title:    c.PostForm("title"),
			Abstract: c.PostForm("abstract"),
			Authors:  parseAuthors(c.PostForm("authors")),
			Keywords: services.ParseKeywords(c.PostForm("keywords")),
			Content:  c.PostForm("content"),
			Uploader: user.ID,
		})
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, paper)
	}
}

// parseAuthors accepts a JSON array of authors (objects or plain names) or a
// comma-separated list of names.
func parseAuthors(raw string) []models.Author {
	raw = strings.TrimSpace(raw)
	authors := []models.Author{}
	if raw == "" {
		return authors
	}

	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &authors); err == nil {
			return authors
		}
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err == nil {
			authors = authors[:0]
			for _, name := range names {
				if name = strings.TrimSpace(name); name != "" {
					authors = append(authors, models.Author{Name: name})
				}
			}
			return authors
		}
	}

	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			authors = append(authors, models.Author{Name: name})
		}
	}
	return authors
}
