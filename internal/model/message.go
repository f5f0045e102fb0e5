package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

// SourceRef is a document cited alongside an assistant answer.
type SourceRef struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

type Message struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Role      Role           `gorm:"size:16;not null;index" json:"role"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Sources   datatypes.JSON `gorm:"not null" json:"sources"`
	CreatedAt time.Time      `json:"created_at"`
}

// BeforeCreate stores an empty list for messages without sources.
func (m *Message) BeforeCreate(*gorm.DB) error {
	if len(m.Sources) == 0 {
		m.Sources = datatypes.JSON("[]")
	}
	return nil
}

func (m *Message) SetSources(refs []SourceRef) error {
	if refs == nil {
		refs = []SourceRef{}
	}
	b, err := json.Marshal(refs)
	if err != nil {
		return err
	}
	m.Sources = datatypes.JSON(b)
	return nil
}

func (m *Message) SourceRefs() ([]SourceRef, error) {
	if len(m.Sources) == 0 {
		return nil, nil
	}
	var refs []SourceRef
	if err := json.Unmarshal(m.Sources, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}
