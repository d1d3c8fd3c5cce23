package timetable

import "errors"

// ErrAmbiguousIdentity is returned when an identity carries zero or more than
// one of its mutually exclusive fields.
var ErrAmbiguousIdentity = errors.New("identity must carry exactly one of teacher id, class name or room")

// Identity is the unit of subscription and push targeting: exactly one of a
// teacher id, a class name, or a room name. Rooms are REST-only; the push
// path does not serve room subscriptions.
type Identity struct {
	TeacherID string `json:"teacher_id,omitempty"`
	ClassName string `json:"class_name,omitempty"`
	Room      string `json:"room,omitempty"`
}

// TeacherIdentity builds a teacher identity.
func TeacherIdentity(id string) Identity { return Identity{TeacherID: id} }

// ClassIdentity builds a class identity.
func ClassIdentity(name string) Identity { return Identity{ClassName: name} }

// RoomIdentity builds a room identity.
func RoomIdentity(name string) Identity { return Identity{Room: name} }

// Validate checks that exactly one field is set.
func (i Identity) Validate() error {
	set := 0
	if i.TeacherID != "" {
		set++
	}
	if i.ClassName != "" {
		set++
	}
	if i.Room != "" {
		set++
	}
	if set != 1 {
		return ErrAmbiguousIdentity
	}
	return nil
}

// Pushable reports whether the identity can receive push snapshots.
func (i Identity) Pushable() bool {
	return i.TeacherID != "" || i.ClassName != ""
}

// Key returns a stable string form usable as a map or cache key.
func (i Identity) Key() string {
	switch {
	case i.TeacherID != "":
		return "teacher:" + i.TeacherID
	case i.ClassName != "":
		return "class:" + i.ClassName
	case i.Room != "":
		return "room:" + i.Room
	}
	return ""
}

// Matches reports whether the entry belongs to this identity's timetable.
func (i Identity) Matches(e ScheduleEntry) bool {
	switch {
	case i.TeacherID != "":
		return e.TeacherID == i.TeacherID || e.ReplacementTeacherID == i.TeacherID
	case i.ClassName != "":
		return e.ClassName == i.ClassName
	case i.Room != "":
		return e.Room == i.Room
	}
	return false
}
