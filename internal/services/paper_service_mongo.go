package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"appraisal_go_backend/internal/database"
	"appraisal_go_backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type paperDocument struct {
	ID                primitive.ObjectID       `bson:"_id,omitempty"`
	Title             string                   `bson:"title"`
	Abstract          string                   `bson:"abstract"`
	Authors           []models.Author          `bson:"authors"`
	Keywords          []string                 `bson:"keywords"`
	Content           string                   `bson:"content"`
	ExtractedFeatures models.ExtractedFeatures `bson:"extractedFeatures"`
	UploadedBy        primitive.ObjectID       `bson:"uploadedBy"`
	FilePath          string                   `bson:"filePath,omitempty"`
	UploadDate        time.Time                `bson:"uploadDate"`
	CreatedAt         time.Time                `bson:"createdAt"`
	UpdatedAt         time.Time                `bson:"updatedAt"`
}

func (d paperDocument) toModel() models.Paper {
	return models.Paper{
		ID:                d.ID.Hex(),
		Title:             d.Title,
		Abstract:          d.Abstract,
		Authors:           d.Authors,
		Keywords:          d.Keywords,
		Content:           d.Content,
		ExtractedFeatures: d.ExtractedFeatures,
		UploadedBy:        models.UploaderRef{ID: d.UploadedBy.Hex()},
		FilePath:          d.FilePath,
		UploadDate:        d.UploadDate,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// MongoPaperService implements PaperStore on a MongoDB collection.
type MongoPaperService struct {
	papers *mongo.Collection
	users  *mongo.Collection
}

func NewMongoPaperService(db *mongo.Database) PaperStore {
	return &MongoPaperService{
		papers: db.Collection(database.PapersCollection),
		users:  db.Collection(database.UsersCollection),
	}
}

func (s *MongoPaperService) CreatePaper(ctx context.Context, paper *models.Paper) error {
	uploader, err := primitive.ObjectIDFromHex(paper.UploadedBy.ID)
	if err != nil {
		return fmt.Errorf("invalid uploadedBy id %q: %w", paper.UploadedBy.ID, err)
	}
	id := primitive.NewObjectID()
	if paper.ID != "" {
		if id, err = primitive.ObjectIDFromHex(paper.ID); err != nil {
			return fmt.Errorf("invalid paper id %q: %w", paper.ID, err)
		}
	}
	now := time.Now().UTC()
	doc := paperDocument{
		ID:                id,
		Title:             paper.Title,
		Abstract:          paper.Abstract,
		Authors:           paper.Authors,
		Keywords:          paper.Keywords,
		Content:           paper.Content,
		ExtractedFeatures: paper.ExtractedFeatures,
		UploadedBy:        uploader,
		FilePath:          paper.FilePath,
		UploadDate:        paper.UploadDate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := s.papers.InsertOne(ctx, doc); err != nil {
		return err
	}
	paper.ID = id.Hex()
	paper.CreatedAt = now
	paper.UpdatedAt = now
	return nil
}

func (s *MongoPaperService) ListPapers(ctx context.Context) ([]models.Paper, error) {
	cursor, err := s.papers.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []paperDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	papers := make([]models.Paper, 0, len(docs))
	for _, d := range docs {
		papers = append(papers, d.toModel())
	}
	if err := s.resolveUploaders(ctx, papers); err != nil {
		return nil, err
	}
	return papers, nil
}

func (s *MongoPaperService) GetPaper(ctx context.Context, id string) (*models.Paper, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrPaperNotFound
	}
	var doc paperDocument
	err = s.papers.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPaperNotFound
	}
	if err != nil {
		return nil, err
	}
	papers := []models.Paper{doc.toModel()}
	if err := s.resolveUploaders(ctx, papers); err != nil {
		return nil, err
	}
	return &papers[0], nil
}

func (s *MongoPaperService) CountPapers(ctx context.Context) (int64, error) {
	return s.papers.CountDocuments(ctx, bson.D{})
}

func (s *MongoPaperService) CountPapersSince(ctx context.Context, since time.Time) (int64, error) {
	return s.papers.CountDocuments(ctx, bson.M{"uploadDate": bson.M{"$gte": since}})
}

// resolveUploaders looks up all distinct uploaders in one $in query.
func (s *MongoPaperService) resolveUploaders(ctx context.Context, papers []models.Paper) error {
	ids := uploaderIDs(papers)
	if len(ids) == 0 {
		applyUsernames(papers, nil)
		return nil
	}
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	opts := options.Find().SetProjection(bson.M{"username": 1})
	cursor, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": oids}}, opts)
	if err != nil {
		return err
	}
	var users []struct {
		ID       primitive.ObjectID `bson:"_id"`
		Username string             `bson:"username"`
	}
	if err := cursor.All(ctx, &users); err != nil {
		return err
	}
	usernames := make(map[string]string, len(users))
	for _, u := range users {
		usernames[u.ID.Hex()] = u.Username
	}
	applyUsernames(papers, usernames)
	return nil
}
