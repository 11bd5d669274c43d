package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pageaudit/pageaudit/internal/audit"
)

func queuedEvent() Event {
	return Event{JobID: "job-1", TS: time.Unix(100, 0), Stage: StageQueued, Position: 2, ETA: time.Minute}
}

func processingEvent() Event {
	return Event{JobID: "job-1", TS: time.Unix(101, 0), Stage: StageProcessing}
}

func completeEvent() Event {
	return Event{JobID: "job-1", TS: time.Unix(102, 0), Stage: StageComplete, Report: &audit.Report{URL: "https://example.com"}}
}

func errorEvent() Event {
	return Event{JobID: "job-1", TS: time.Unix(102, 0), Stage: StageError, Message: "the audit failed"}
}

func drain(s *Stream) []Event {
	var out []Event
	for evt := range s.Events() {
		out = append(out, evt)
	}
	return out
}

func TestStreamSuccessLifecycle(t *testing.T) {
	t.Parallel()

	s := NewStream(zap.NewNop())
	s.Emit(queuedEvent())
	s.Emit(processingEvent())
	s.Emit(completeEvent())

	events := drain(s)
	require.Len(t, events, 3)
	require.Equal(t, StageQueued, events[0].Stage)
	require.Equal(t, 2, events[0].Position)
	require.Equal(t, time.Minute, events[0].ETA)
	require.Equal(t, StageProcessing, events[1].Stage)
	require.Equal(t, StageComplete, events[2].Stage)
	require.NotNil(t, events[2].Report)
}

func TestStreamClosesAfterTerminal(t *testing.T) {
	t.Parallel()

	s := NewStream(nil)
	s.Emit(queuedEvent())
	s.Emit(errorEvent())

	// Emits after the terminal stage are dropped, not delivered.
	s.Emit(processingEvent())
	s.Emit(completeEvent())

	events := drain(s)
	require.Len(t, events, 2)
	require.Equal(t, StageError, events[1].Stage)
	require.Equal(t, "the audit failed", events[1].Message)

	_, open := <-s.Events()
	require.False(t, open)
}

func TestStreamDropsRepeatedStages(t *testing.T) {
	t.Parallel()

	s := NewStream(nil)
	s.Emit(queuedEvent())
	s.Emit(queuedEvent())
	s.Emit(processingEvent())
	s.Emit(processingEvent())
	s.Emit(completeEvent())

	events := drain(s)
	require.Len(t, events, 3)
}

func TestStreamDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	s := NewStream(nil)
	s.Emit(Event{})
	s.Emit(Event{JobID: "job-1", TS: time.Unix(100, 0), Stage: StageComplete})
	s.Emit(Event{JobID: "job-1", TS: time.Unix(100, 0), Stage: StageError})
	s.Emit(completeEvent())

	events := drain(s)
	require.Len(t, events, 1)
	require.Equal(t, StageComplete, events[0].Stage)
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, queuedEvent().Validate())
	require.NoError(t, processingEvent().Validate())
	require.NoError(t, completeEvent().Validate())
	require.NoError(t, errorEvent().Validate())

	missingID := queuedEvent()
	missingID.JobID = ""
	require.Error(t, missingID.Validate())

	missingTS := queuedEvent()
	missingTS.TS = time.Time{}
	require.Error(t, missingTS.Validate())

	unknown := queuedEvent()
	unknown.Stage = "restarted"
	require.Error(t, unknown.Validate())

	completeWithoutReport := completeEvent()
	completeWithoutReport.Report = nil
	require.Error(t, completeWithoutReport.Validate())

	errorWithoutMessage := errorEvent()
	errorWithoutMessage.Message = ""
	require.Error(t, errorWithoutMessage.Validate())
}

func TestEventTerminal(t *testing.T) {
	t.Parallel()

	require.False(t, queuedEvent().Terminal())
	require.False(t, processingEvent().Terminal())
	require.True(t, completeEvent().Terminal())
	require.True(t, errorEvent().Terminal())
}
