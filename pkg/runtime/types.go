package runtime

import (
	"time"
)

type Object interface {
	GetName() string
	SetName(string)
	GetID() string
	SetID(string)
	GetVersion() string
	SetVersion(string)
	GetUpdatedAt() time.Time
	SetUpdatedAt(time.Time)
}

// Entity is the persisted identity shared by configuration records.
type Entity struct {
	ID         string     `json:"id"`
	Version    string     `json:"eTag"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

func (e *Entity) GetID() string                    { return e.ID }
func (e *Entity) SetID(id string)                  { e.ID = id }
func (e *Entity) GetVersion() string               { return e.Version }
func (e *Entity) SetVersion(version string)        { e.Version = version }
func (e *Entity) GetUpdatedAt() time.Time          { return e.UpdatedAt }
func (e *Entity) SetUpdatedAt(updatedAt time.Time) { e.UpdatedAt = updatedAt }

func (e *Entity) IsArchived() bool {
	return e.ArchivedAt != nil
}

func (e *Entity) Archive(at time.Time) {
	if e.ArchivedAt == nil {
		e.ArchivedAt = &at
		e.UpdatedAt = at
	}
}

// Stamp fills the creation and modification times of a freshly loaded entity.
func (e *Entity) Stamp(now time.Time) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}

type ResponseModel struct {
	Tags   interface{} `json:"tags,omitempty"`
	Alarms interface{} `json:"alarms,omitempty"`
}
