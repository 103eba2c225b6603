package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDecodeEvent(t *testing.T) {
	t.Run("Should decode a progression event with pagination", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"file_id":"f1","event":"sending_to_llm_progression","pagination":50,"index":2,"total":10}`))
		require.NoError(t, err)
		assert.Equal(t, "f1", ev.FileID)
		assert.Equal(t, StatusSendingToLLMProgression, ev.Event)
		assert.Equal(t, map[string]any{"pagination": 50, "index": 2, "total": 10}, ev.Data())
	})

	t.Run("Should decode derived file info", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"file_id":"f1","event":"process_cleaning_done","file_cleaned":{"path":"/s/f1.clean.csv","type":"text/csv"}}`))
		require.NoError(t, err)
		require.NotNil(t, ev.FileCleaned)
		assert.Equal(t, "/s/f1.clean.csv", *ev.FileCleaned.Path)
		assert.Nil(t, ev.FileAnalysed)
	})

	t.Run("Should carry no data for plain status events", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"file_id":"f1","event":"in_queue"}`))
		require.NoError(t, err)
		assert.Nil(t, ev.Data())
	})

	t.Run("Should reject malformed bodies", func(t *testing.T) {
		cases := map[string]string{
			"empty":         ``,
			"not json":      `{"file_id":`,
			"no file id":    `{"event":"in_queue"}`,
			"unknown event": `{"file_id":"f1","event":"exploded"}`,
			"command name":  `{"file_id":"f1","event":"proceed_task"}`,
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := DecodeEvent([]byte(body))
				assert.ErrorIs(t, err, ErrMalformedEvent)
			})
		}
	})
}

func TestRoutes(t *testing.T) {
	t.Run("Should separate command routes from event routes", func(t *testing.T) {
		for _, key := range EventRoutes() {
			assert.False(t, IsCommandRoute(key), key)
		}
		assert.True(t, IsCommandRoute(RouteProceedTask))
		assert.True(t, IsCommandRoute(RouteRetryStep))
		assert.True(t, IsCommandRoute(RouteHandleProcess))
		assert.Contains(t, EventRoutes(), "sending_to_llm_progression")
		assert.Contains(t, EventRoutes(), "stopped")
	})

	t.Run("Should accept only pause resume and stop", func(t *testing.T) {
		a, err := ParseProcessAction("pause")
		require.NoError(t, err)
		assert.Equal(t, ActionPause, a)
		_, err = ParseProcessAction("invalid")
		assert.ErrorIs(t, err, ErrValidation)
	})
}
