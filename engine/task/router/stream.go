package tkrouter

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dallosh/analysis/engine/infra/server/appstate"
	"github.com/dallosh/analysis/engine/infra/server/router"
	"github.com/dallosh/analysis/engine/streaming"
)

const (
	defaultStreamHeartbeat = 15 * time.Second
	streamReplayLimit      = 500
)

type taskStream struct {
	fileID    string
	wildcard  bool
	resume    bool
	lastID    int64
	heartbeat time.Duration
	state     *appstate.State
	sink      *streaming.ChannelSink
	sse       *router.SSEStream
	telemetry *router.StreamTelemetry
	closeInfo *router.StreamCloseInfo
}

// streamAllTasks streams events of every task
//
//	@Summary		Stream all task events
//	@Description	Server-Sent Events for every task. Wildcard streams never replay.
//	@Tags			streams
//	@Produce		text/event-stream
//	@Success		200	{string}	string	"SSE stream"
//	@Router			/streams/tasks [get]
func streamAllTasks(c *gin.Context) {
	serveTaskStream(c, streaming.Wildcard)
}

// streamFileTasks streams events of one task
//
//	@Summary		Stream task events
//	@Description	Server-Sent Events for the task of file_id. Frames after Last-Event-ID are replayed first.
//	@Tags			streams
//	@Produce		text/event-stream
//	@Param			file_id			path		string	true	"Dataset file id"
//	@Param			Last-Event-ID	header		string	false	"Resume after this frame id"
//	@Param			last_event_id	query		int		false	"Resume after this frame id"
//	@Success		200				{string}	string	"SSE stream"
//	@Failure		400				{object}	core.ProblemDocument	"Invalid Last-Event-ID"
//	@Router			/streams/tasks/{file_id} [get]
func streamFileTasks(c *gin.Context) {
	fileID := router.GetURLParam(c, "file_id")
	if fileID == "" {
		return
	}
	serveTaskStream(c, fileID)
}

func serveTaskStream(c *gin.Context, fileID string) {
	lastID, resume, err := router.LastEventID(c.Request)
	if err != nil {
		reqErr := router.NewRequestError(http.StatusBadRequest, "invalid Last-Event-ID", err)
		router.RespondWithError(c, reqErr.StatusCode, reqErr)
		return
	}
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	s := &taskStream{
		fileID:    fileID,
		wildcard:  fileID == streaming.Wildcard,
		resume:    resume,
		lastID:    lastID,
		heartbeat: state.Config.Stream.Heartbeat,
		state:     state,
		sink:      streaming.NewChannelSink(state.Config.Stream.SinkBuffer),
		closeInfo: &router.StreamCloseInfo{Reason: router.StreamReasonInitializing, LastEventID: lastID},
	}
	if s.heartbeat <= 0 {
		s.heartbeat = defaultStreamHeartbeat
	}
	s.sse = router.StartSSE(c.Writer)
	if s.sse == nil {
		router.RespondProblemWithCode(
			c,
			http.StatusInternalServerError,
			router.ErrInternalCode,
			"failed to initialize stream",
		)
		return
	}
	s.telemetry = router.NewStreamTelemetry(c.Request.Context(), fileID, s.wildcard, state.StreamMetrics)
	defer func() { s.telemetry.Close(s.closeInfo) }()
	s.run(s.telemetry.Context())
}

func (s *taskStream) run(ctx context.Context) {
	// Subscribe before replaying so no frame published meanwhile is missed;
	// duplicates are dropped by id.
	s.state.Broadcaster.Subscribe(ctx, s.fileID, s.sink)
	defer func() {
		s.state.Broadcaster.Unsubscribe(context.WithoutCancel(ctx), s.fileID, s.sink)
		s.sink.Close()
	}()
	if !s.write(streaming.ConnectedFrame(s.fileID, time.Now())) {
		return
	}
	s.telemetry.Connected(s.lastID)
	if !s.replay(ctx) {
		return
	}
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeInfo.Reason = router.StreamReasonContextCanceled
			return
		case <-heartbeat.C:
			if err := s.sse.WriteHeartbeat(); err != nil {
				s.closeInfo.Reason = router.StreamReasonWriteFailed
				s.closeInfo.Error = err
				return
			}
		case f, ok := <-s.sink.Frames():
			if !ok {
				s.closeInfo.Reason = router.StreamReasonSinkClosed
				s.write(streaming.ErrorFrame(s.fileID, "subscriber dropped", time.Now()))
				return
			}
			if s.duplicate(f) {
				continue
			}
			if !s.write(f) {
				return
			}
		}
	}
}

func (s *taskStream) replay(ctx context.Context) bool {
	if !s.resume || s.wildcard {
		return true
	}
	frames, err := s.state.Events.Replay(ctx, s.fileID, s.lastID, streamReplayLimit)
	if err != nil {
		s.closeInfo.Reason = router.StreamReasonReplayFailed
		s.closeInfo.Error = err
		s.write(streaming.ErrorFrame(s.fileID, "failed to replay events", time.Now()))
		return false
	}
	for i := range frames {
		if !s.write(frames[i]) {
			return false
		}
	}
	s.telemetry.Replayed(len(frames))
	return true
}

// duplicate reports frames already sent during replay. Ids are per file, so
// wildcard streams never deduplicate.
func (s *taskStream) duplicate(f streaming.Frame) bool {
	return !s.wildcard && f.ID > 0 && f.ID <= s.lastID
}

func (s *taskStream) write(f streaming.Frame) bool {
	if err := s.sse.WriteEvent(f.ID, string(f.Type), f); err != nil {
		s.closeInfo.Reason = router.StreamReasonWriteFailed
		s.closeInfo.Error = err
		return false
	}
	if f.ID > 0 && !s.wildcard && f.ID > s.lastID {
		s.lastID = f.ID
		s.closeInfo.LastEventID = f.ID
	}
	s.closeInfo.Frames++
	return true
}
