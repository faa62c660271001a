package instance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateName(t *testing.T) {
	testCases := []struct {
		name      string
		inputName string
		errMsg    string
	}{
		{name: "default name", inputName: DefaultName},
		{name: "with hyphens", inputName: "design-review"},
		{name: "with numbers", inputName: "room-42"},
		{name: "single character", inputName: "a"},
		{name: "exactly max length", inputName: "a" + strings.Repeat("b", MaxNameLength-1)},
		{name: "empty", inputName: "", errMsg: "cannot be empty"},
		{name: "uppercase", inputName: "Whiteboard", errMsg: "must be lowercase"},
		{name: "leading hyphen", inputName: "-room", errMsg: "not at start/end"},
		{name: "trailing hyphen", inputName: "room-", errMsg: "not at start/end"},
		{name: "underscore", inputName: "team_room", errMsg: "must be lowercase alphanumeric"},
		{name: "colon would break key namespacing", inputName: "a:b", errMsg: "must be lowercase alphanumeric"},
		{name: "too long", inputName: strings.Repeat("a", MaxNameLength+1), errMsg: "too long"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateName(tc.inputName)
			if tc.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestValidateName_SuggestsUsableName(t *testing.T) {
	err := ValidateName("Design Review")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "(try 'design-review')")

	err = ValidateName("---")
	assert.Error(t, err)
	assert.NotContains(t, err.Error(), "try")
}

func TestSuggestName(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{input: "Design Review", want: "design-review"},
		{input: "team_room", want: "team-room"},
		{input: "loft:prod:*", want: "loft-prod"},
		{input: "  Q3 Planning!! ", want: "q3-planning"},
		{input: "already-valid", want: "already-valid"},
		{input: "café", want: "caf"},
		{input: "***", want: ""},
		{input: strings.Repeat("ab-", 30), want: strings.TrimRight(strings.Repeat("ab-", 21), "-")},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got := SuggestName(tc.input)
			assert.Equal(t, tc.want, got)
			if got != "" {
				assert.NoError(t, ValidateName(got))
			}
		})
	}
}

func TestGetRedisURL(t *testing.T) {
	url := GetRedisURL(6400)
	assert.True(t, strings.HasPrefix(url, "redis://"))
	assert.True(t, strings.HasSuffix(url, ":6400"))
	assert.Contains(t, url, GetRedisHost())

	assert.True(t, strings.HasSuffix(DefaultRedisURL(), ":6379"))
}
