package models

import (
	"github.com/google/uuid"
)

// ===========================================================================
// KnowledgeDocument (Tài liệu kiến thức)
// Nguồn text đã xử lý để đưa vào context của AI
// Engine chỉ đọc, việc extract text (scrape/PDF) thuộc collaborator khác
// ===========================================================================

// DocumentStatus trạng thái xử lý tài liệu
type DocumentStatus string

const (
	// DocumentProcessing đang xử lý, chưa đưa vào prompt
	DocumentProcessing DocumentStatus = "PROCESSING"

	// DocumentCompleted đã xử lý xong, được đưa vào prompt
	DocumentCompleted DocumentStatus = "COMPLETED"

	// DocumentFailed xử lý thất bại, loại khỏi prompt
	DocumentFailed DocumentStatus = "FAILED"
)

// KnowledgeDocument đại diện cho một tài liệu kiến thức
type KnowledgeDocument struct {
	BaseModel

	// StoreID ID store sở hữu tài liệu
	StoreID uuid.UUID `gorm:"type:uuid;not null;index" json:"store_id"`

	// Title tiêu đề tài liệu
	Title string `gorm:"size:500;not null" json:"title"`

	// Content toàn bộ text đã extract
	Content string `gorm:"type:text" json:"content"`

	// Status trạng thái xử lý: PROCESSING, COMPLETED, FAILED
	Status DocumentStatus `gorm:"size:20;not null;default:'PROCESSING';index" json:"status"`

	// SourceType nguồn tài liệu (manual, url, file)
	SourceType string `gorm:"size:50" json:"source_type,omitempty"`

	// Relations
	Store Store `gorm:"foreignKey:StoreID" json:"store,omitempty"`
}

// TableName trả về tên bảng
func (KnowledgeDocument) TableName() string {
	return "knowledge_documents"
}

// IsCompleted kiểm tra tài liệu đã sẵn sàng đưa vào prompt chưa
func (d *KnowledgeDocument) IsCompleted() bool {
	return d.Status == DocumentCompleted
}
