package services_test

import (
	"context"
	"io"
	"time"

	"appraisal_go_backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockPaperStore struct {
	mock.Mock
}

func (m *MockPaperStore) CreatePaper(ctx context.Context, paper *models.Paper) error {
	args := m.Called(ctx, paper)
	if args.Error(0) == nil && paper.ID == "" {
		paper.ID = models.NewID()
	}
	return args.Error(0)
}

func (m *MockPaperStore) ListPapers(ctx context.Context) ([]models.Paper, error) {
	args := m.Called(ctx)
	papers, _ := args.Get(0).([]models.Paper)
	return papers, args.Error(1)
}

func (m *MockPaperStore) GetPaper(ctx context.Context, id string) (*models.Paper, error) {
	args := m.Called(ctx, id)
	paper, _ := args.Get(0).(*models.Paper)
	return paper, args.Error(1)
}

func (m *MockPaperStore) CountPapers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPaperStore) CountPapersSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserStore) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	args := m.Called(ctx, email, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *MockUserStore) CountUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) UploadFile(ctx context.Context, objectName string, content io.Reader) error {
	args := m.Called(ctx, objectName, content)
	return args.Error(0)
}

func (m *MockFileStorage) DownloadFile(ctx context.Context, objectName string) ([]byte, error) {
	args := m.Called(ctx, objectName)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockFileStorage) DeleteFile(ctx context.Context, objectName string) error {
	args := m.Called(ctx, objectName)
	return args.Error(0)
}

type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	args := m.Called(ctx, data)
	return args.String(0), args.Error(1)
}

type MockFeatureExtractor struct {
	mock.Mock
}

func (m *MockFeatureExtractor) ExtractFeatures(ctx context.Context, text string) (models.ExtractedFeatures, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(models.ExtractedFeatures), args.Error(1)
}
