package we_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weegigs/wee-streams-go/we"
)

type light string

func TestLifecycle(t *testing.T) {
	lifecycle := we.NewLifecycle(
		[]light{"red"},
		map[light][]light{
			"red":    {"green"},
			"green":  {"yellow"},
			"yellow": {"red", "broken"},
		},
	)

	assert.Nil(t, lifecycle.Create("red"))
	assert.ErrorIs(t, lifecycle.Create("green"), we.ErrInvalidStateTransition)

	assert.Nil(t, lifecycle.Transition("red", "green"))
	assert.Nil(t, lifecycle.Transition("yellow", "broken"))

	err := lifecycle.Transition("green", "red")
	assert.ErrorIs(t, err, we.ErrInvalidStateTransition)

	var invalid *we.InvalidStateTransitionError
	if assert.ErrorAs(t, err, &invalid) {
		assert.Equal(t, "green", invalid.From)
		assert.Equal(t, "red", invalid.To)
	}

	assert.True(t, lifecycle.IsTerminal("broken"))
	assert.False(t, lifecycle.IsTerminal("red"))
}
