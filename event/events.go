package event

import (
	"blogapi/common"
	"blogapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var eventIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

// CreateEvent appends an audit record through db, normally the transaction that carries the change itself.
func CreateEvent(sourceType string, sourceId types.ID, sourceDesc string, category EventCategory,
	updatedProperties []UpdatedProperty, updatedRelations []UpdatedRelation,
	identity *session.Identity, timestamp types.Timestamp, db *gorm.DB) (*EventRecord, error) {

	record := EventRecord{
		ID: common.NextId(eventIdWorker),
		Event: Event{
			SourceType: sourceType,
			SourceId:   sourceId,
			SourceDesc: sourceDesc,

			EventCategory:     category,
			UpdatedProperties: updatedProperties,
			UpdatedRelations:  updatedRelations,
		},
		Synced:    false,
		Timestamp: timestamp,
	}
	if identity != nil {
		record.CreatorId = identity.ID
		record.CreatorName = identity.Name
	}
	if err := EventPersistCreateFunc(&record, db); err != nil {
		return nil, err
	}
	return &record, nil
}

// PropertyChange builds an UpdatedProperty when old and new differ; ok is false otherwise.
func PropertyChange(name, oldValue, newValue string) (UpdatedProperty, bool) {
	if oldValue == newValue {
		return UpdatedProperty{}, false
	}
	return UpdatedProperty{PropertyName: name, PropertyDesc: name,
		OldValue: oldValue, OldValueDesc: oldValue, NewValue: newValue, NewValueDesc: newValue}, true
}
