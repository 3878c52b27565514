package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventuais/eventuais/core"
)

func newContext(target string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestOrdering_Bind(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []core.DBOrdering
	}{
		{name: "none", query: "", want: nil},
		{name: "ascending", query: "?ordering=name", want: []core.DBOrdering{{Field: "name", Ascending: true}}},
		{name: "descending", query: "?ordering=-created_at", want: []core.DBOrdering{{Field: "created_at"}}},
		{
			name: "many", query: "?ordering=is_active,+-name",
			want: []core.DBOrdering{{Field: "is_active", Ascending: true}, {Field: "name"}},
		},
		{name: "blank fields skipped", query: "?ordering=,-,name", want: []core.DBOrdering{{Field: "name", Ascending: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bindOrdering(newContext("/"+tt.query)))
		})
	}
}

func Test_queryBool(t *testing.T) {
	ctx := newContext("/?a=true&b=0&c=lol")

	got, err := queryBool(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, *got)

	got, err = queryBool(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, *got)

	got, err = queryBool(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = queryBool(ctx, "c")
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []core.FieldError{{Field: "c", Error: "enter a valid boolean"}}, vErr.Fields)
}

func Test_querySearch(t *testing.T) {
	assert.Equal(t, "ada lovelace", querySearch(newContext("/?search=++ada+lovelace+")))
	assert.Empty(t, querySearch(newContext("/")))
}

func Test_orEmpty(t *testing.T) {
	assert.Equal(t, []int{}, orEmpty[int](nil))
	assert.Equal(t, []int{1}, orEmpty([]int{1}))
}
