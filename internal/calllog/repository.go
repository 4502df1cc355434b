package calllog

import (
	"fmt"

	"gorm.io/gorm"
)

// CallRepository provides database operations for call records, mirroring
// the teacher's DMRUserRepository split between connection setup (db.go)
// and query/command methods (this file).
type CallRepository struct {
	db *gorm.DB
}

// NewCallRepository creates a repository bound to an open *gorm.DB.
func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

// Create inserts a new call record and fills in its ID.
func (r *CallRepository) Create(rec *CallRecord) error {
	if rec == nil {
		return fmt.Errorf("calllog: record cannot be nil")
	}
	return r.db.Create(rec).Error
}

// Update persists changes to an existing call record (e.g. once the call
// ends and completion/page counts are known).
func (r *CallRepository) Update(rec *CallRecord) error {
	if rec == nil || rec.ID == 0 {
		return fmt.Errorf("calllog: record must have an ID to update")
	}
	return r.db.Save(rec).Error
}

// AddPage appends one PageRecord to a call.
func (r *CallRepository) AddPage(page *PageRecord) error {
	if page == nil || page.CallRecordID == 0 {
		return fmt.Errorf("calllog: page must reference a call record")
	}
	return r.db.Create(page).Error
}

// ByID fetches a single call record by primary key.
func (r *CallRepository) ByID(id uint64) (*CallRecord, error) {
	var rec CallRecord
	if err := r.db.First(&rec, id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// Pages returns every page recorded against a call, in page order.
func (r *CallRepository) Pages(callID uint64) ([]PageRecord, error) {
	var pages []PageRecord
	err := r.db.Where("call_record_id = ?", callID).Order("page_number asc").Find(&pages).Error
	return pages, err
}

// Recent returns the most recent limit call records, newest first.
func (r *CallRepository) Recent(limit int) ([]CallRecord, error) {
	var recs []CallRecord
	err := r.db.Order("started_at desc").Limit(limit).Find(&recs).Error
	return recs, err
}

// ByRemoteIdent returns every call to/from a given remote CSI/TSI,
// newest first.
func (r *CallRepository) ByRemoteIdent(ident string) ([]CallRecord, error) {
	var recs []CallRecord
	err := r.db.Where("remote_ident = ?", ident).Order("started_at desc").Find(&recs).Error
	return recs, err
}
