package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveGap(t *testing.T) {
	entry := SupervisionEntry{ID: "s1", Kind: SupervisionBetweenSlots}

	entry.Position = -1
	gap, err := entry.ResolveGap(8)
	require.NoError(t, err)
	assert.Equal(t, 0, gap)

	entry.Position = 3
	gap, err = entry.ResolveGap(8)
	require.NoError(t, err)
	assert.Equal(t, 4, gap)

	entry.Position = 7
	gap, err = entry.ResolveGap(8)
	require.NoError(t, err)
	assert.Equal(t, 8, gap)
}

func TestResolveGapUnattachable(t *testing.T) {
	entry := SupervisionEntry{ID: "s1", Kind: SupervisionBetweenSlots, Position: 8}
	_, err := entry.ResolveGap(8)

	var unattachable *UnattachableError
	require.ErrorAs(t, err, &unattachable)
	assert.Equal(t, "s1", unattachable.EntryID)
	assert.Equal(t, 8, unattachable.Position)

	entry.Position = -2
	_, err = entry.ResolveGap(8)
	assert.ErrorAs(t, err, &unattachable)
}

func TestResolveGapWrongKind(t *testing.T) {
	entry := SupervisionEntry{ID: "s1", Kind: SupervisionWithinSlot, Position: 0}
	_, err := entry.ResolveGap(8)
	assert.Error(t, err)
}

func TestIdentityValidate(t *testing.T) {
	assert.NoError(t, TeacherIdentity("t1").Validate())
	assert.NoError(t, ClassIdentity("5A").Validate())
	assert.NoError(t, RoomIdentity("B204").Validate())
	assert.ErrorIs(t, Identity{}.Validate(), ErrAmbiguousIdentity)
	assert.ErrorIs(t, Identity{TeacherID: "t1", ClassName: "5A"}.Validate(), ErrAmbiguousIdentity)
}

func TestIdentityPushable(t *testing.T) {
	assert.True(t, TeacherIdentity("t1").Pushable())
	assert.True(t, ClassIdentity("5A").Pushable())
	assert.False(t, RoomIdentity("B204").Pushable())
}

func TestIdentityMatches(t *testing.T) {
	entry := ScheduleEntry{ClassName: "5A", TeacherID: "t1", ReplacementTeacherID: "t2", Room: "B204"}
	assert.True(t, TeacherIdentity("t1").Matches(entry))
	assert.True(t, TeacherIdentity("t2").Matches(entry))
	assert.False(t, TeacherIdentity("t3").Matches(entry))
	assert.True(t, ClassIdentity("5A").Matches(entry))
	assert.True(t, RoomIdentity("B204").Matches(entry))
}
