package services

import (
	"context"
	"errors"
	"io"
	"time"

	"appraisal_go_backend/internal/models"
)

var (
	ErrPaperNotFound       = errors.New("research paper not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnsupportedFileType = errors.New("only PDF files are allowed")
	ErrFileTooLarge        = errors.New("file exceeds the maximum upload size")
	ErrNoFile              = errors.New("no file provided")
	ErrFileNotFound        = errors.New("paper has no stored file")
)

// PaperStore persists papers. ListPapers and GetPaper return papers whose
// UploadedBy is resolved to the uploader's username; a reference to a missing
// user comes back cleared.
type PaperStore interface {
	CreatePaper(ctx context.Context, paper *models.Paper) error
	ListPapers(ctx context.Context) ([]models.Paper, error)
	GetPaper(ctx context.Context, id string) (*models.Paper, error)
	CountPapers(ctx context.Context) (int64, error)
	CountPapersSince(ctx context.Context, since time.Time) (int64, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// FileStorageManager stores uploaded files under slash-separated object names.
type FileStorageManager interface {
	UploadFile(ctx context.Context, objectName string, content io.Reader) error
	DownloadFile(ctx context.Context, objectName string) ([]byte, error)
	DeleteFile(ctx context.Context, objectName string) error
}

type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

type FeatureExtractor interface {
	ExtractFeatures(ctx context.Context, text string) (models.ExtractedFeatures, error)
}
