package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/docfields/hybriddetect/internal/pdferr"
)

// PostgresStore is the gorm/PostgreSQL-backed Store implementation.
type PostgresStore struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the documents/field_regions schema.
func Open(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindStorageFailure, "open postgres connection", err)
	}
	if err := db.AutoMigrate(&Document{}, &FieldRegion{}); err != nil {
		return nil, pdferr.Wrap(pdferr.KindPersistenceFailure, "migrate schema", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetDocument(id uuid.UUID) (*Document, error) {
	var doc Document
	if err := s.db.First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pdferr.New(pdferr.KindNotFound, fmt.Sprintf("document %s", id))
		}
		return nil, pdferr.Wrap(pdferr.KindStorageFailure, "get document", err)
	}
	return &doc, nil
}

// ClaimForProcessing performs a conditional UPDATE so that, under
// concurrent claims, only one caller's statement matches a row and returns
// RowsAffected > 0 (§5's exclusive-ownership guarantee).
func (s *PostgresStore) ClaimForProcessing(id uuid.UUID, force bool) (*Document, bool, error) {
	query := s.db.Model(&Document{}).Where("id = ?", id)
	if !force {
		query = query.Where("status IN ?", []Status{StatusImported, StatusFailed})
	} else {
		query = query.Where("status <> ?", StatusProcessing)
	}

	result := query.Updates(map[string]interface{}{
		"status":     StatusProcessing,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return nil, false, pdferr.Wrap(pdferr.KindStorageFailure, "claim document for processing", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, false, nil
	}

	doc, err := s.GetDocument(id)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// ReplaceFieldRegions deletes and reinserts a document's field regions in
// one transaction, so a partial write never leaves a document `ready` with
// an incomplete field set.
func (s *PostgresStore) ReplaceFieldRegions(documentID uuid.UUID, regions []FieldRegion) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&FieldRegion{}).Error; err != nil {
			return err
		}
		if len(regions) == 0 {
			return nil
		}
		return tx.Create(&regions).Error
	})
}

func (s *PostgresStore) DeleteFieldRegions(documentID uuid.UUID) error {
	if err := s.db.Where("document_id = ?", documentID).Delete(&FieldRegion{}).Error; err != nil {
		return pdferr.Wrap(pdferr.KindPersistenceFailure, "delete field regions", err)
	}
	return nil
}

func (s *PostgresStore) MarkReady(documentID uuid.UUID, pageCount int, acroform bool) error {
	err := s.db.Model(&Document{}).Where("id = ?", documentID).Updates(map[string]interface{}{
		"status":     StatusReady,
		"page_count": pageCount,
		"acroform":   acroform,
		"updated_at": time.Now(),
	}).Error
	if err != nil {
		return pdferr.Wrap(pdferr.KindPersistenceFailure, "mark document ready", err)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(documentID uuid.UUID, errMsg string) error {
	err := s.db.Model(&Document{}).Where("id = ?", documentID).Updates(map[string]interface{}{
		"status":        StatusFailed,
		"error_message": errMsg,
		"updated_at":    time.Now(),
	}).Error
	if err != nil {
		return pdferr.Wrap(pdferr.KindPersistenceFailure, "mark document failed", err)
	}
	return nil
}
