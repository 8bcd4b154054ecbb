package models

import (
	"time"

	"gorm.io/gorm"
)

type Author struct {
	Name        string `json:"name" bson:"name"`
	Affiliation string `json:"affiliation,omitempty" bson:"affiliation,omitempty"`
}

// ExtractedFeatures holds what was pulled out of a paper's text at upload time.
type ExtractedFeatures struct {
	Concepts       []string `json:"concepts" bson:"concepts"`
	TechnicalTerms []string `json:"technicalTerms" bson:"technicalTerms"`
	Features       []string `json:"features" bson:"features"`
}

// Paper is a research paper record. UploadedBy is a one-way reference to a
// User; it is only resolved to a username on the read path.
type Paper struct {
	ID                string            `json:"_id" gorm:"primaryKey;size:24"`
	Title             string            `json:"title" gorm:"not null"`
	Abstract          string            `json:"abstract" gorm:"type:text;not null"`
	Authors           []Author          `json:"authors" gorm:"serializer:json;type:text"`
	Keywords          []string          `json:"keywords" gorm:"serializer:json;type:text"`
	Content           string            `json:"content" gorm:"type:text;not null"`
	ExtractedFeatures ExtractedFeatures `json:"extractedFeatures" gorm:"serializer:json;type:text"`
	UploadedBy        UploaderRef       `json:"uploadedBy" gorm:"column:uploaded_by;type:varchar(24);index;not null"`
	FilePath          string            `json:"filePath,omitempty"`
	UploadDate        time.Time         `json:"uploadDate" gorm:"index"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func (Paper) TableName() string {
	return "research_papers"
}

func (p *Paper) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}

// Normalize replaces nil lists with empty ones so they serialize as [] rather than null.
func (p *Paper) Normalize() {
	if p.Authors == nil {
		p.Authors = []Author{}
	}
	if p.Keywords == nil {
		p.Keywords = []string{}
	}
	f := &p.ExtractedFeatures
	if f.Concepts == nil {
		f.Concepts = []string{}
	}
	if f.TechnicalTerms == nil {
		f.TechnicalTerms = []string{}
	}
	if f.Features == nil {
		f.Features = []string{}
	}
}

// DashboardStats is the aggregate shown on the dashboard.
type DashboardStats struct {
	TotalPapers   int64 `json:"totalPapers"`
	TotalUsers    int64 `json:"totalUsers"`
	RecentUploads int64 `json:"recentUploads"`
}
