package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	rec := &Recorder{}
	require.NoError(t, rec.Emit(StatusEvent("Searching for \"mugs\"...")))
	require.NoError(t, rec.Emit(ProcessingEvent("shop.example", 1, 2)))
	require.NoError(t, rec.Emit(StatusEvent("Found 2 sites to scan")))
	require.NoError(t, rec.Emit(ErrorEvent(errors.New("boom"))))

	require.Len(t, rec.Events(), 4)
	require.Equal(t, []Type{TypeStatus, TypeProcessing, TypeStatus, TypeError}, rec.Types())
	status := rec.OfType(TypeStatus)
	require.Len(t, status, 2)
	require.Equal(t, "Found 2 sites to scan", status[1].Payload.(Status).Message)
	require.Empty(t, rec.OfType(TypeComplete))
}
