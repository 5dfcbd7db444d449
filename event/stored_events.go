package event

import (
	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	EventPersistCreateFunc = eventPersistCreate
)

func eventPersistCreate(record *EventRecord, db *gorm.DB) error {
	return db.Create(record).Error
}

// QueryEvents lists the audit trail of one source, oldest first.
func QueryEvents(sourceType string, sourceId uint64, db *gorm.DB) ([]EventRecord, error) {
	var records []EventRecord
	if err := db.Where("source_type = ? AND source_id = ?", sourceType, sourceId).Order("timestamp ASC, id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// MarkSynced flags records whose effects reached every downstream handler.
func MarkSynced(db *gorm.DB, ids ...types.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.Model(&EventRecord{}).Where("id IN (?)", ids).Update("synced", true).Error
}

// QueryUnsyncedEvents lists the pending records of a source type, oldest first.
func QueryUnsyncedEvents(sourceType string, db *gorm.DB) ([]EventRecord, error) {
	var records []EventRecord
	if err := db.Where("source_type = ? AND synced = ?", sourceType, false).Order("timestamp ASC, id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
