// Package store persists Documents and FieldRegions and implements the
// status-transition and replace-wholesale semantics the worker needs
// (spec §5/§6), on top of gorm and PostgreSQL the way the rest of the
// domain stack reaches for a real driver instead of hand-rolled SQL.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Status is the document's processing lifecycle state (§6).
type Status string

const (
	StatusImported   Status = "imported"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFilling    Status = "filling"
	StatusFilled     Status = "filled"
	StatusFailed     Status = "failed"
)

// Document is the external collaborator record the core reads
// storage_key_original from and writes status/page_count/acroform/
// error_message to.
type Document struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID              string
	FileName            string
	MimeType            string
	StorageKeyOriginal  string
	StorageKeyFilled    string
	Status              Status `gorm:"type:varchar(20);not null"`
	PageCount           int
	HashFingerprint     string
	Acroform            bool
	ErrorMessage        string
	CreatedAt           time.Time
	UpdatedAt           time.Time

	// FieldRegions is the has-many side of the relationship; its presence
	// is what makes AutoMigrate emit the field_regions.document_id foreign
	// key with ON DELETE CASCADE, matching §6.
	FieldRegions []FieldRegion `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

func (Document) TableName() string { return "documents" }

// Processable reports whether a document may start a new processing run
// without --force.
func (d Document) Processable() bool {
	switch d.Status {
	case StatusImported, StatusFailed:
		return true
	default:
		return false
	}
}

// FieldRegion mirrors a FieldDetection, owned exclusively by one Document.
type FieldRegion struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentID  uuid.UUID `gorm:"type:uuid;not null;index"`
	PageIndex   int       `gorm:"not null"`
	X           float64
	Y           float64
	Width       float64
	Height      float64
	FieldType   string `gorm:"type:varchar(20)"`
	Label       string `gorm:"type:varchar(255)"`
	Confidence  float64
	TemplateKey string `gorm:"index"`
	CreatedAt   time.Time
}

func (FieldRegion) TableName() string { return "field_regions" }

// Store is the persistence boundary the worker depends on. ClaimForProcessing
// performs the conditional status update that establishes exclusive
// ownership (§5); ReplaceFieldRegions is transactional delete-then-insert.
type Store interface {
	GetDocument(id uuid.UUID) (*Document, error)
	// ClaimForProcessing conditionally transitions a document to
	// `processing`, returning ok=false if another worker already claimed
	// it (or force=false and its status is not processable).
	ClaimForProcessing(id uuid.UUID, force bool) (doc *Document, ok bool, err error)
	ReplaceFieldRegions(documentID uuid.UUID, regions []FieldRegion) error
	MarkReady(documentID uuid.UUID, pageCount int, acroform bool) error
	MarkFailed(documentID uuid.UUID, errMsg string) error
	DeleteFieldRegions(documentID uuid.UUID) error
}
