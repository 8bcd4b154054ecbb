package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"appraisal_go_backend/internal/models"
	"appraisal_go_backend/internal/utils/bibtexparser"
	"appraisal_go_backend/internal/utils/broker"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// RecentWindow is how far back an upload counts as recent on the dashboard.
	RecentWindow = 7 * 24 * time.Hour

	DefaultMaxUploadBytes int64 = 16 << 20

	uploadPrefix = "papers/"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	pdfMagic            = []byte("%PDF")
)

// PaperEvent is published on broker.TopicPapers after a paper is stored.
type PaperEvent struct {
	Type  string       `json:"type"`
	Paper models.Paper `json:"paper"`
}

// UploadPaperInput is the parsed multipart upload. Content is optional; the
// text extracted from the file is used when it is blank.
type UploadPaperInput struct {
	Filename string
	File     io.Reader
	Title    string
	Abstract string
	Authors  []models.Author
	Keywords []string
	Content  string
	Uploader string
}

type ResearchService struct {
	papers        PaperStore
	users         UserStore
	storage       FileStorageManager
	textExtractor TextExtractor
	features      FeatureExtractor
	broker        *broker.Broker
	maxUpload     int64
	now           func() time.Time
}

type ResearchServiceOption func(*ResearchService)

func WithMaxUploadBytes(n int64) ResearchServiceOption {
	return func(s *ResearchService) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

func WithClock(now func() time.Time) ResearchServiceOption {
	return func(s *ResearchService) { s.now = now }
}

func NewResearchService(
	papers PaperStore,
	users UserStore,
	storage FileStorageManager,
	textExtractor TextExtractor,
	features FeatureExtractor,
	messageBroker *broker.Broker,
	opts ...ResearchServiceOption,
) *ResearchService {
	s := &ResearchService{
		papers:        papers,
		users:         users,
		storage:       storage,
		textExtractor: textExtractor,
		features:      features,
		broker:        messageBroker,
		maxUpload:     DefaultMaxUploadBytes,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ResearchService) MaxUploadBytes() int64 {
	return s.maxUpload
}

func (s *ResearchService) ListPapers(ctx context.Context) ([]models.Paper, error) {
	papers, err := s.papers.ListPapers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}
	return papers, nil
}

func (s *ResearchService) GetPaper(ctx context.Context, id string) (*models.Paper, error) {
	paper, err := s.papers.GetPaper(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPaperNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get paper %s: %w", id, err)
	}
	return paper, nil
}

// notBlank rejects whitespace-only strings without altering the stored value.
var notBlank = validation.By(func(value interface{}) error {
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})

func validatePaper(p *models.Paper) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Title, validation.Required, notBlank),
		validation.Field(&p.Abstract, validation.Required, notBlank),
		validation.Field(&p.Content, validation.Required, notBlank),
		validation.Field(&p.UploadedBy, validation.By(func(value interface{}) error {
			var id string
			switch v := value.(type) {
			case models.UploaderRef:
				id = v.ID
			case string:
				id = v
			}
			if id == "" {
				return errors.New("cannot be blank")
			}
			if !models.IsValidID(id) {
				return errors.New("must be a valid id")
			}
			return nil
		})),
	)
}

// CreatePaper stores a paper exactly as given apart from defaults: a zero
// UploadDate becomes now and nil lists become empty. The returned paper keeps
// UploadedBy unresolved.
func (s *ResearchService) CreatePaper(ctx context.Context, paper *models.Paper) (*models.Paper, error) {
	paper.UploadedBy = models.UploaderRef{ID: strings.TrimSpace(paper.UploadedBy.ID)}
	if err := validatePaper(paper); err != nil {
		return nil, err
	}

	paper.ID = ""
	paper.CreatedAt = time.Time{}
	paper.UpdatedAt = time.Time{}
	paper.Normalize()
	if paper.UploadDate.IsZero() {
		paper.UploadDate = s.now()
	}
	paper.UploadDate = paper.UploadDate.UTC()

	if err := s.papers.CreatePaper(ctx, paper); err != nil {
		return nil, fmt.Errorf("failed to create paper: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("paperID", paper.ID).Str("title", paper.Title).Msg("Research paper created")
	s.publish(ctx, "paper_created", *paper)
	return paper, nil
}

// UploadPaper stores the PDF, derives content and features from it, and
// creates the paper record. The stored file is removed again if the record
// cannot be created.
func (s *ResearchService) UploadPaper(ctx context.Context, in UploadPaperInput) (*models.Paper, error) {
	log := zerolog.Ctx(ctx)

	if in.File == nil {
		return nil, ErrNoFile
	}
	if !strings.EqualFold(filepath.Ext(in.Filename), ".pdf") {
		return nil, ErrUnsupportedFileType
	}

	data, err := io.ReadAll(io.LimitReader(in.File, s.maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxUpload {
		return nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, ErrNoFile
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, ErrUnsupportedFileType
	}

	content := in.Content
	if strings.TrimSpace(content) == "" {
		text, err := s.textExtractor.ExtractText(ctx, data)
		if err != nil {
			log.Warn().Err(err).Str("filename", in.Filename).Msg("Failed to extract text from upload")
		}
		content = text
	}

	paper := &models.Paper{
		Title:      in.Title,
		Abstract:   in.Abstract,
		Authors:    in.Authors,
		Keywords:   in.Keywords,
		Content:    content,
		UploadedBy: models.UploaderRef{ID: in.Uploader},
	}
	if err := validatePaper(paper); err != nil {
		return nil, err
	}

	if strings.TrimSpace(content) != "" {
		features, err := s.features.ExtractFeatures(ctx, content)
		if err != nil {
			log.Warn().Err(err).Msg("Feature extraction failed")
		} else {
			paper.ExtractedFeatures = features
		}
	}

	objectName := uploadPrefix + uuid.New().String() + "-" + SanitizeFilename(in.Filename)
	if err := s.storage.UploadFile(ctx, objectName, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}
	paper.FilePath = objectName

	created, err := s.CreatePaper(ctx, paper)
	if err != nil {
		if delErr := s.storage.DeleteFile(ctx, objectName); delErr != nil {
			log.Error().Err(delErr).Str("object", objectName).Msg("Failed to remove orphaned upload")
		}
		return nil, err
	}
	log.Info().Str("paperID", created.ID).Str("object", objectName).Int("bytes", len(data)).Msg("Research paper uploaded")
	return created, nil
}

// DashboardStats counts all papers, all users and papers uploaded within
// RecentWindow.
func (s *ResearchService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	totalPapers, err := s.papers.CountPapers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count papers: %w", err)
	}
	totalUsers, err := s.users.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	recent, err := s.papers.CountPapersSince(ctx, s.now().Add(-RecentWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent uploads: %w", err)
	}
	return &models.DashboardStats{
		TotalPapers:   totalPapers,
		TotalUsers:    totalUsers,
		RecentUploads: recent,
	}, nil
}

// ExportBibTeX renders one paper, or every paper when id is empty.
func (s *ResearchService) ExportBibTeX(ctx context.Context, id string) (string, error) {
	var papers []models.Paper
	if id == "" {
		all, err := s.ListPapers(ctx)
		if err != nil {
			return "", err
		}
		papers = all
	} else {
		paper, err := s.GetPaper(ctx, id)
		if err != nil {
			return "", err
		}
		papers = []models.Paper{*paper}
	}
	return bibtexparser.FormatPapers(papers), nil
}

// PaperFile returns the stored PDF of a paper together with the filename it
// was uploaded under.
func (s *ResearchService) PaperFile(ctx context.Context, id string) (string, []byte, error) {
	paper, err := s.GetPaper(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if paper.FilePath == "" {
		return "", nil, ErrFileNotFound
	}
	data, err := s.storage.DownloadFile(ctx, paper.FilePath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file for paper %s: %w", id, err)
	}
	return uploadedFilename(paper.FilePath), data, nil
}

// uploadedFilename strips the storage prefix and the uuid added by UploadPaper.
func uploadedFilename(objectName string) string {
	name := strings.TrimPrefix(objectName, uploadPrefix)
	if len(name) > 37 && name[36] == '-' {
		if _, err := uuid.Parse(name[:36]); err == nil {
			return name[37:]
		}
	}
	return SanitizeFilename(name)
}

func (s *ResearchService) publish(ctx context.Context, eventType string, paper models.Paper) {
	if s.broker == nil {
		return
	}
	n := s.broker.Publish(broker.TopicPapers, PaperEvent{Type: eventType, Paper: paper})
	zerolog.Ctx(ctx).Debug().Str("event", eventType).Int("subscribers", n).Msg("Published paper event")
}

// SanitizeFilename reduces a client-supplied filename to a safe base name.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload.pdf"
	}
	return name
}

// ParseKeywords splits a comma-separated keyword list, dropping blanks.
func ParseKeywords(raw string) []string {
	keywords := []string{}
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}
