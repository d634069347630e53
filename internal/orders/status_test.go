package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusDraft, StatusPlaced, true},
		{StatusDraft, StatusCancelled, true},
		{StatusDraft, StatusShipped, false},
		{StatusDraft, StatusCompleted, false},
		{StatusPlaced, StatusShipped, true},
		{StatusPlaced, StatusCancelled, true},
		{StatusPlaced, StatusCompleted, false},
		{StatusPlaced, StatusDraft, false},
		{StatusShipped, StatusCompleted, true},
		{StatusShipped, StatusCancelled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPlaced, false},
		{StatusCancelled, StatusDraft, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusPlaced, StatusCancelled, StatusShipped, StatusCompleted} {
		assert.True(t, ValidStatus(s))
	}
	assert.False(t, ValidStatus(Status("pending")))
	assert.False(t, ValidStatus(Status("")))
}
