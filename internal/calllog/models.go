package calllog

import (
	"time"

	"github.com/dbehnke/gofax/internal/t30"
)

// CallRecord is one completed (or abandoned) FAX call, the top-level CDR
// row. Modelled on the teacher's DMRUser record shape: a flat, gorm-tagged
// struct with a TableName override and small helper methods rather than
// bare exported fields with no behaviour.
type CallRecord struct {
	ID              uint64    `gorm:"primarykey" json:"id"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	Role            string    `gorm:"size:8" json:"role"` // "answer" or "call"
	RemoteIdent     string    `gorm:"size:24" json:"remote_ident"`
	LocalIdent      string    `gorm:"size:24" json:"local_ident"`
	CompletionCode  int       `json:"completion_code"`
	CompletionText  string    `gorm:"size:48" json:"completion_text"`
	PagesSent       int       `json:"pages_sent"`
	PagesReceived   int       `json:"pages_received"`
	ECMUsed         bool      `json:"ecm_used"`
	FinalModem      string    `gorm:"size:16" json:"final_modem"`
	RemoteAddress   string    `gorm:"size:64" json:"remote_address"` // SIP/T.38 peer, if applicable
}

// TableName specifies the table name for GORM.
func (CallRecord) TableName() string { return "call_records" }

// Duration returns how long the call lasted.
func (c CallRecord) Duration() time.Duration {
	if c.EndedAt.Before(c.StartedAt) {
		return 0
	}
	return c.EndedAt.Sub(c.StartedAt)
}

// Successful reports whether the call ended with CompletionOK.
func (c CallRecord) Successful() bool {
	return t30.CompletionCode(c.CompletionCode) == t30.CompletionOK
}

// PageRecord is one transferred page within a CallRecord, recording the
// per-page copy quality and timing the session engine surfaces via
// t30.Session's phase D callbacks.
type PageRecord struct {
	ID           uint64    `gorm:"primarykey" json:"id"`
	CallRecordID uint64    `gorm:"index;not null" json:"call_record_id"`
	PageNumber   int       `json:"page_number"`
	Quality      string    `gorm:"size:8" json:"quality"` // GOOD/POOR/BAD
	BadRows      int       `json:"bad_rows"`
	TotalRows    int       `json:"total_rows"`
	Compression  string    `gorm:"size:8" json:"compression"`
	TransferredAt time.Time `json:"transferred_at"`
}

// TableName specifies the table name for GORM.
func (PageRecord) TableName() string { return "page_records" }
