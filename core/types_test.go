package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func TestDate_JSON(t *testing.T) {
	var payload struct {
		Start Date `json:"start"`
		End   Date `json:"end"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"start": "2024-06-03", "end": null}`), &payload))
	assert.Equal(t, NewDate(2024, time.June, 3), payload.Start)
	assert.True(t, payload.End.IsZero())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start": "2024-06-03", "end": null}`, string(out))

	err = json.Unmarshal([]byte(`{"start": "03/06/2024"}`), &payload)
	assert.EqualError(t, err, `invalid date "03/06/2024", expected YYYY-MM-DD`)
}

func TestDate_Scan(t *testing.T) {
	want := NewDate(2024, time.June, 3)
	tests := []struct {
		name string
		src  interface{}
		want Date
	}{
		{name: "nil", src: nil},
		{name: "time", src: time.Date(2024, 6, 3, 23, 59, 0, 0, time.UTC), want: want},
		{name: "bytes", src: []byte("2024-06-03"), want: want},
		{name: "timestamp string", src: "2024-06-03T00:00:00Z", want: want},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDate(1999, time.January, 1)
			require.NoError(t, d.Scan(tt.src))
			assert.Equal(t, tt.want, d)
		})
	}

	var d Date
	assert.Error(t, d.Scan(42))

	v, err := Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = want.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-06-03", v)
}

func TestOptional(t *testing.T) {
	var in struct {
		Parent Optional[null.String] `json:"parent"`
		Owner  Optional[null.String] `json:"owner"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"parent": null}`), &in))
	assert.True(t, in.Parent.Set)
	assert.False(t, in.Parent.Value.Valid)
	assert.False(t, in.Owner.Set)

	parent, owner := null.StringFrom("p"), null.StringFrom("o")
	in.Parent.Assign(&parent)
	in.Owner.Assign(&owner)
	assert.False(t, parent.Valid, "explicit null clears the value")
	assert.Equal(t, null.StringFrom("o"), owner, "absent field keeps the value")

	name := "old"
	Assign(&name, nil)
	assert.Equal(t, "old", name)
	newName := "new"
	Assign(&name, &newName)
	assert.Equal(t, "new", name)
}

func TestStringList(t *testing.T) {
	var l StringList
	out, err := json.Marshal(l)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))

	v, err := l.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	require.NoError(t, l.Scan([]byte(`["a@acme.io","b@acme.io"]`)))
	assert.Equal(t, StringList{"a@acme.io", "b@acme.io"}, l)

	require.NoError(t, l.Scan("null"))
	assert.Equal(t, StringList{}, l)

	require.NoError(t, l.Scan(nil))
	assert.Equal(t, StringList{}, l)

	assert.Error(t, l.Scan(`{"a": 1}`))
	assert.Error(t, l.Scan(3))
}

func TestChoices(t *testing.T) {
	cs := Choices{{Value: "low", Label: "Low"}, {Value: "high", Label: "High"}}
	assert.Equal(t, "High", cs.Label("high"))
	assert.Equal(t, "urgent", cs.Label("urgent"))
	assert.True(t, cs.Has("low"))
	assert.False(t, cs.Has("Low"))
	assert.Equal(t, 1, cs.Index("high"))
	assert.Equal(t, 2, cs.Index("urgent"))
}

func TestMergeJSON(t *testing.T) {
	out, err := MergeJSON([]byte(`{"id": "1", "name": "Acme"}`), map[string]interface{}{"level": 2, "name": "ACME"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "1", "name": "ACME", "level": 2}`, string(out))

	_, err = MergeJSON([]byte(`[1]`), nil)
	assert.Error(t, err)
}
