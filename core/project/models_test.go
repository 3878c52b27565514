package project

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
)

var day = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time {
	return day.Add(time.Duration(hour) * time.Hour)
}

func booking(id string, start, end int) Allocation {
	return Allocation{
		ID:              id,
		CrewID:          null.StringFrom("crew-1"),
		AllocationStart: at(start),
		AllocationEnd:   at(end),
	}
}

func TestOverlaps(t *testing.T) {
	existing := booking("a", 9, 12)

	tests := []struct {
		name       string
		start, end int
		want       bool
	}{
		{"same range", 9, 12, true},
		{"inside", 10, 11, true},
		{"covers", 8, 13, true},
		{"starts inside", 11, 14, true},
		{"ends inside", 7, 10, true},
		{"ends at start", 6, 9, false},
		{"starts at end", 12, 15, false},
		{"before", 5, 8, false},
		{"after", 13, 15, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := booking("b", tc.start, tc.end)
			assert.Equal(t, tc.want, b.Overlaps(existing))
			assert.Equal(t, tc.want, existing.Overlaps(b))
		})
	}
}

func TestAllocationCheck(t *testing.T) {
	tests := []struct {
		name  string
		alloc Allocation
		want  error
	}{
		{"no resource", Allocation{AllocationStart: at(12), AllocationEnd: at(9)}, ErrNoResource},
		{
			"two resources before bad range",
			Allocation{
				EquipmentID:     null.StringFrom("eq-1"),
				CrewID:          null.StringFrom("crew-1"),
				AllocationStart: at(12),
				AllocationEnd:   at(9),
			},
			ErrManyResources,
		},
		{"end before start", booking("", 12, 9), ErrEndBeforeStart},
		{"zero length", booking("", 9, 9), ErrEndBeforeStart},
		{"ok", booking("", 9, 12), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.alloc.check())
		})
	}

	assert.EqualError(t, ErrResourceAllocated, "This resource is already allocated during the requested time period.")
}

func TestConflicts(t *testing.T) {
	existing := []Allocation{booking("a", 9, 12), booking("b", 14, 16)}

	assert.True(t, booking("new", 15, 17).conflicts(existing))
	assert.False(t, booking("new", 12, 14).conflicts(existing))
	assert.False(t, booking("a", 10, 13).conflicts(existing), "moving an allocation must not clash with itself")
	assert.True(t, booking("a", 10, 15).conflicts(existing))
	assert.False(t, booking("new", 9, 12).conflicts(nil))
}

func TestAllocationResource(t *testing.T) {
	kind, id := Allocation{TransportationID: null.StringFrom("tr-1")}.Resource()
	assert.Equal(t, KindTransportation, kind)
	assert.Equal(t, "tr-1", id)

	kind, id = Allocation{}.Resource()
	assert.Empty(t, kind)
	assert.Empty(t, id)
}

func TestAllocationJSON(t *testing.T) {
	data, err := json.Marshal(booking("a", 9, 12))
	require.NoError(t, err)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "crew", got["resource_type"])
	assert.Equal(t, "crew-1", got["crew"])
	assert.Nil(t, got["equipment"])

	data, err = json.Marshal(Allocation{})
	require.NoError(t, err)
	got = nil
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Contains(t, got, "resource_type")
	assert.Nil(t, got["resource_type"])
}

func TestAllocationInputUTC(t *testing.T) {
	loc := time.FixedZone("WAT", 3600)
	start := time.Date(2024, 6, 3, 10, 0, 0, 0, loc)
	end := start.Add(2 * time.Hour)

	var a Allocation
	AllocationInput{AllocationStart: &start, AllocationEnd: &end}.Apply(&a)
	assert.Equal(t, time.UTC, a.AllocationStart.Location())
	assert.True(t, a.AllocationStart.Equal(start))
	assert.True(t, a.AllocationEnd.Equal(end))
}

func TestResourceApplyForcesType(t *testing.T) {
	name := "  Excavator  "
	var e Equipment
	e.Type = KindCrew
	EquipmentInput{ResourceInput: ResourceInput{Name: &name}}.Apply(&e)
	assert.Equal(t, KindEquipment, e.Type)
	assert.Equal(t, "Excavator", e.Name)

	var c Crew
	CrewInput{}.Apply(&c)
	assert.Equal(t, KindCrew, c.Type)

	var tr Transportation
	TransportationInput{}.Apply(&tr)
	assert.Equal(t, KindTransportation, tr.Type)
}

func TestProjectCheck(t *testing.T) {
	p := Project{StartDate: core.NewDate(2024, 6, 1), EndDate: core.NewDate(2024, 6, 1)}
	assert.NoError(t, p.check())

	p.EndDate = core.NewDate(2024, 5, 31)
	err := p.check()
	require.Error(t, err)
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "end_date", verr.Fields[0].Field)
}

func TestCanEdit(t *testing.T) {
	c := Comment{AuthorID: "author"}
	assert.True(t, canEdit(c, "author", false))
	assert.False(t, canEdit(c, "someone", false))
	assert.True(t, canEdit(c, "someone", true))
}
