package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event announces one successful mutation in the REST backend. Key is the
// transaction or category id, or the budget's category name.
type Event struct {
	Entity    string    `json:"entity"`
	Operation string    `json:"operation"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(entity, operation, key string) *Event {
	return &Event{
		Entity:    entity,
		Operation: operation,
		Key:       key,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes and checks an event body.
func EventFromJSON(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Entity == "" || ev.Operation == "" {
		return nil, errors.New("decode event: entity and operation are required")
	}
	return &ev, nil
}
