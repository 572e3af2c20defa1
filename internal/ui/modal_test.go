package ui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModal_Lifecycle(t *testing.T) {
	var m Modal
	assert.Equal(t, StateClosed, m.State())
	assert.ErrorIs(t, m.Begin(), ErrModalClosed)

	require.NoError(t, m.Open())
	assert.Equal(t, StateEditing, m.State())
	assert.True(t, m.Editable())

	require.NoError(t, m.Begin())
	assert.Equal(t, StateSubmitting, m.State())
	assert.False(t, m.Editable())
	assert.ErrorIs(t, m.Begin(), ErrBusy, "second submit while submitting")
	assert.ErrorIs(t, m.Cancel(), ErrBusy)
	assert.ErrorIs(t, m.Open(), ErrBusy)

	boom := errors.New("boom")
	m.Fail(boom)
	assert.Equal(t, StateError, m.State())
	assert.Equal(t, boom, m.Err())
	assert.True(t, m.Editable())

	require.NoError(t, m.Begin(), "retry from error")
	assert.Nil(t, m.Err())
	assert.True(t, m.Succeed())
	assert.Equal(t, StateClosed, m.State())
}

func TestModal_CancelDoesNotRefresh(t *testing.T) {
	var m Modal
	require.NoError(t, m.Open())
	require.NoError(t, m.Cancel())
	assert.Equal(t, StateClosed, m.State())
	assert.False(t, m.Succeed(), "nothing was submitted")
}

func TestModal_FailOutsideSubmitIgnored(t *testing.T) {
	var m Modal
	require.NoError(t, m.Open())
	m.Fail(errors.New("late"))
	assert.Equal(t, StateEditing, m.State())
	assert.NoError(t, m.Err())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "editing", StateEditing.String())
	assert.Equal(t, "submitting", StateSubmitting.String())
	assert.Equal(t, "error", StateError.String())
}
