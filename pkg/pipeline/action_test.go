package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogEntriesReturnsCopy(t *testing.T) {
	l := NewLog()
	l.Append("scale", []any{2}, nil)
	l.Append("tag", nil, map[string]any{"label": "v1"})

	entries := l.Entries()
	require.Len(t, entries, 2)

	entries[0].Name = "mutated"
	assert.Equal(t, "scale", l.Entries()[0].Name)
}

func TestCallArgBounds(t *testing.T) {
	c := Call{Args: []any{1, "x"}, Kwargs: map[string]any{"k": true}}

	assert.Equal(t, 1, c.Arg(0))
	assert.Equal(t, "x", c.Arg(1))
	assert.Nil(t, c.Arg(2))
	assert.Nil(t, c.Arg(-1))
	assert.Equal(t, true, c.Kwarg("k"))
	assert.Nil(t, c.Kwarg("missing"))
}

func TestValidateRejectsTrailingJoin(t *testing.T) {
	reg := NewRegistry("records").Register("noop", nil)

	l := NewLog()
	l.Append("noop", nil, nil)
	l.AppendJoin(nil)

	require.ErrorIs(t, l.validate(reg), ErrConfiguration)

	// A consumed join is fine.
	l.Append("noop", nil, nil)
	require.NoError(t, l.validate(reg))
}
