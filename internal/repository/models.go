package repository

import (
	"encoding/json"
	"time"

	"github.com/farmalink/erpbridge/internal/domain"
)

// LedgerEntryModel is the persistence model for the ledger table. Source
// lines and the built payload are stored serialized so exports and
// second-wave retries can be produced without re-parsing the input file.
type LedgerEntryModel struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     uint   `gorm:"not null;index"`
	Module    string `gorm:"type:varchar(40);not null"`
	FileName  string `gorm:"type:varchar(255);not null"`
	KeyValue  string `gorm:"type:varchar(64);not null"`
	Synthetic bool   `gorm:"not null;default:false"`
	Submitted bool   `gorm:"not null;default:false"`
	Status    string `gorm:"type:text;not null;default:''"`
	Payload   []byte `gorm:"type:jsonb"`
	Lines     []byte `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

func ledgerModelFromDomain(e *domain.LedgerEntry) (*LedgerEntryModel, error) {
	if e == nil {
		return nil, nil
	}

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	lines, err := json.Marshal(e.Records)
	if err != nil {
		return nil, err
	}

	return &LedgerEntryModel{
		ID:        e.ID,
		RunID:     e.RunID,
		Module:    e.Module,
		FileName:  e.FileName,
		KeyValue:  e.Key,
		Synthetic: e.Synthetic,
		Submitted: e.Submitted,
		Status:    e.Status,
		Payload:   payload,
		Lines:     lines,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, nil
}

func ledgerModelToDomain(m *LedgerEntryModel) (*domain.LedgerEntry, error) {
	if m == nil {
		return nil, nil
	}

	entry := &domain.LedgerEntry{
		ID:        m.ID,
		RunID:     m.RunID,
		Module:    m.Module,
		FileName:  m.FileName,
		Key:       m.KeyValue,
		Synthetic: m.Synthetic,
		Submitted: m.Submitted,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &entry.Payload); err != nil {
			return nil, err
		}
	}
	if len(m.Lines) > 0 {
		if err := json.Unmarshal(m.Lines, &entry.Records); err != nil {
			return nil, err
		}
	}
	return entry, nil
}
