package services

import (
	"context"
	"errors"
	"time"

	"appraisal_go_backend/internal/models"

	"gorm.io/gorm"
)

// DefaultPaperServiceDB implements PaperStore on a relational database via gorm.
type DefaultPaperServiceDB struct {
	db *gorm.DB
}

func NewPaperServiceDB(db *gorm.DB) PaperStore {
	return &DefaultPaperServiceDB{db: db}
}

func (s *DefaultPaperServiceDB) CreatePaper(ctx context.Context, paper *models.Paper) error {
	return s.db.WithContext(ctx).Create(paper).Error
}

func (s *DefaultPaperServiceDB) ListPapers(ctx context.Context) ([]models.Paper, error) {
	papers := []models.Paper{}
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&papers).Error; err != nil {
		return nil, err
	}
	if err := s.resolveUploaders(ctx, papers); err != nil {
		return nil, err
	}
	return papers, nil
}

func (s *DefaultPaperServiceDB) GetPaper(ctx context.Context, id string) (*models.Paper, error) {
	if !models.IsValidID(id) {
		return nil, ErrPaperNotFound
	}
	var paper models.Paper
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&paper).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaperNotFound
	}
	if err != nil {
		return nil, err
	}
	papers := []models.Paper{paper}
	if err := s.resolveUploaders(ctx, papers); err != nil {
		return nil, err
	}
	return &papers[0], nil
}

func (s *DefaultPaperServiceDB) CountPapers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Paper{}).Count(&count).Error
	return count, err
}

func (s *DefaultPaperServiceDB) CountPapersSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Paper{}).Where("upload_date >= ?", since).Count(&count).Error
	return count, err
}

// resolveUploaders fills in uploader usernames with a single IN query.
func (s *DefaultPaperServiceDB) resolveUploaders(ctx context.Context, papers []models.Paper) error {
	ids := uploaderIDs(papers)
	if len(ids) == 0 {
		applyUsernames(papers, nil)
		return nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Select("id", "username").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return err
	}
	usernames := make(map[string]string, len(users))
	for _, u := range users {
		usernames[u.ID] = u.Username
	}
	applyUsernames(papers, usernames)
	return nil
}

func uploaderIDs(papers []models.Paper) []string {
	seen := make(map[string]struct{}, len(papers))
	ids := make([]string, 0, len(papers))
	for _, p := range papers {
		id := p.UploadedBy.ID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func applyUsernames(papers []models.Paper, usernames map[string]string) {
	for i := range papers {
		papers[i].Normalize()
		name, ok := usernames[papers[i].UploadedBy.ID]
		if !ok {
			papers[i].UploadedBy = models.UploaderRef{}
			continue
		}
		papers[i].UploadedBy.Username = name
	}
}
