package model

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryInscription Category = "INSCRIPTION"
	CategoryAttestation Category = "ATTESTATION"
	CategoryBourses     Category = "BOURSES"
	CategoryStages      Category = "STAGES"
	CategoryAbsences    Category = "ABSENCES"
	CategoryRattrapage  Category = "RATTRAPAGE"
	CategoryPaiement    Category = "PAIEMENT"
	CategoryCalendrier  Category = "CALENDRIER"
	CategoryReglement   Category = "REGLEMENT"
	CategoryAutres      Category = "AUTRES"
)

var Categories = []Category{
	CategoryInscription, CategoryAttestation, CategoryBourses, CategoryStages, CategoryAbsences,
	CategoryRattrapage, CategoryPaiement, CategoryCalendrier, CategoryReglement, CategoryAutres,
}

// ParseCategory accepts a category name in any case. An empty name is AUTRES.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return CategoryAutres, true
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// MaxNameLength bounds Document.Title and Document.Filename, in characters.
const MaxNameLength = 256

// Document is an uploaded official file. Its text lives in Chunks.
type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:256;not null" json:"title"`
	Filename   string    `gorm:"size:256;not null" json:"filename"`
	StorageKey string    `gorm:"size:512;not null" json:"-"`
	Category   Category  `gorm:"size:32;not null;index;default:AUTRES" json:"category"`
	UploadedBy uint      `gorm:"not null;index" json:"uploaded_by"`
	Chunks     []Chunk   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
