package translation

import (
	"time"

	"github.com/google/uuid"
	"github.com/pitabwire/util"
	"gorm.io/gorm"
)

// BaseModel carries the audit columns shared by durable rows.
type BaseModel struct {
	ID         string `gorm:"type:varchar(50);primary_key"`
	CreatedAt  time.Time
	ModifiedAt time.Time
	Version    uint `gorm:"DEFAULT 0"`
}

func (model *BaseModel) GetID() string {
	return model.ID
}

func (model *BaseModel) GetVersion() uint {
	return model.Version
}

// GenID creates a new id for the model if it has none yet.
func (model *BaseModel) GenID() {
	if model.ID == "" {
		model.ID = util.IDString()
	}
}

func (model *BaseModel) BeforeSave(db *gorm.DB) error {
	return model.BeforeCreate(db)
}

func (model *BaseModel) BeforeCreate(_ *gorm.DB) error {
	if model.Version <= 0 {
		model.CreatedAt = time.Now()
		model.ModifiedAt = time.Now()
		model.Version = 1
	}

	model.GenID()
	return nil
}

// BeforeUpdate bumps the version on every mutation so optimistic locking can
// detect concurrent writers.
func (model *BaseModel) BeforeUpdate(_ *gorm.DB) error {
	model.ModifiedAt = time.Now()
	model.Version++
	return nil
}

// Record is the single durable row per translation key. There is at most one
// record per (namespace, entity_id, field, locale); it is created on first
// write and mutated in place afterwards, never deleted. An empty Value means
// "no override", not deletion.
type Record struct {
	BaseModel

	Namespace string `gorm:"type:varchar(100);uniqueIndex:idx_translation_key"`
	EntityID  string `gorm:"type:varchar(50);uniqueIndex:idx_translation_key"`
	Field     string `gorm:"type:varchar(255);uniqueIndex:idx_translation_key"`
	Locale    string `gorm:"type:varchar(35);uniqueIndex:idx_translation_key"`

	Value     string `gorm:"type:text"`
	UpdatedBy string `gorm:"type:varchar(100)"`
}

func (Record) TableName() string {
	return "translation_records"
}

// Key reassembles the compound identifier of the record.
func (r *Record) Key() Key {
	key := Key{Namespace: r.Namespace, Field: r.Field, Locale: r.Locale}
	if r.EntityID != "" {
		if id, err := uuid.Parse(r.EntityID); err == nil {
			key.EntityID = &id
		}
	}
	return key
}

// HasValue reports whether the record carries a usable override. Empty values
// are the "cleared" sentinel and resolve as absent.
func (r *Record) HasValue() bool {
	return r != nil && r.Value != ""
}

// Source describes how a resolved value was obtained.
type Source string

const (
	// SourceOverride means the requested locale had its own non-empty value.
	SourceOverride = Source("override")
	// SourceFallback means the value was taken from the base locale.
	SourceFallback = Source("fallback")
)

// ResolvedValue is the outcome of a resolution, including how it was reached.
// The whole struct is what gets cached so repeated reads observe identical
// value and source metadata.
type ResolvedValue struct {
	Key     Key    `json:"key"`
	Value   string `json:"value"`
	Source  Source `json:"source"`
	Version uint   `json:"version"`
}
