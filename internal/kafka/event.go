package kafka

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/Togather-Foundation/datastudy/internal/domain/records"
	"github.com/oklog/ulid/v2"
	kafkago "github.com/segmentio/kafka-go"
)

// EventIDHeader carries a per-message ULID that consumers can use to drop duplicates.
const EventIDHeader = "event-id"

const (
	eventUpsert = "upsert"
	eventDelete = "delete"
)

// UpsertEvent is published after a record is created or its text is replaced.
type UpsertEvent struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Time string `json:"time"`
}

// DeleteEvent is published after a single record is removed.
type DeleteEvent struct {
	ID     int64  `json:"id"`
	Action string `json:"action"`
}

type event struct {
	kind  string
	key   []byte
	value any
}

func upsertEvent(record records.Record) event {
	return event{
		kind: eventUpsert,
		key:  recordKey(record.ID),
		value: UpsertEvent{
			ID:   record.ID,
			Text: record.Text,
			Time: record.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

func deleteEvent(id int64) event {
	return event{
		kind:  eventDelete,
		key:   recordKey(id),
		value: DeleteEvent{ID: id, Action: "delete"},
	}
}

func recordKey(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

func (e event) message() (kafkago.Message, error) {
	value, err := json.Marshal(e.value)
	if err != nil {
		return kafkago.Message{}, err
	}
	return kafkago.Message{
		Key:   e.key,
		Value: value,
		Headers: []kafkago.Header{
			{Key: EventIDHeader, Value: []byte(ulid.Make().String())},
		},
	}, nil
}
