package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityAction marks a buffered learner action record.
const EntityAction = "action"

// Item is one queued record waiting to be flushed to the relational store.
// Data holds the serialized domain payload; the queue never inspects it.
type Item struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Entity    string          `json:"entity"`
	Data      json.RawMessage `json:"data"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	// key is the bolt bucket key the item was read under, kept so an Ack
	// can delete exactly the row it saw.
	key []byte
}

func (i *Item) fill() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Entity == "" {
		i.Entity = EntityAction
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
