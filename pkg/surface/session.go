package surface

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/offlinefirst/tiptap/pkg/events"
	"github.com/offlinefirst/tiptap/pkg/gesture"
)

// Message types sent to websocket clients.
const (
	MessageSession = "session"
	MessageState   = "state"
	MessageTap     = "tap"
	MessageError   = "error"
)

// Message is one server-to-client frame. Fields are populated per Type.
type Message struct {
	Type           string                  `json:"type"`
	Session        string                  `json:"session,omitempty"`
	State          *gesture.State          `json:"state,omitempty"`
	Active         []gesture.TouchID       `json:"active,omitempty"`
	Classification *gesture.Classification `json:"classification,omitempty"`
	TapCount       int                     `json:"tap_count,omitempty"`
	Error          string                  `json:"error,omitempty"`
}

type session struct {
	id         string
	conn       *websocket.Conn
	classifier *gesture.Classifier
	tracker    *events.Tracker
	autoReset  bool
	limiter    *rate.Limiter
	pending    []Message
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.OriginPatterns,
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "session closed")

	classifier, err := gesture.New(s.opts.Gesture)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "classifier unavailable")
		return
	}

	sess := &session{
		id:         uuid.NewString(),
		conn:       conn,
		classifier: classifier,
		tracker:    events.NewTracker(),
		autoReset:  s.opts.AutoReset,
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	if s.opts.EventsPerSecond > 0 {
		burst := int(s.opts.EventsPerSecond)
		if burst < 1 {
			burst = 1
		}
		sess.limiter = rate.NewLimiter(rate.Limit(s.opts.EventsPerSecond), burst)
	}
	classifier.Attach(sess.tracker)
	s.opts.Metrics.Observe(classifier)
	classifier.OnStateChanged(func(st gesture.State) {
		sess.pending = append(sess.pending, Message{
			Type:   MessageState,
			State:  &st,
			Active: append([]gesture.TouchID{}, classifier.ActiveTouches()...),
		})
	})
	classifier.OnTapRecognized(func(c gesture.Classification) {
		sess.pending = append(sess.pending, Message{
			Type:           MessageTap,
			Classification: &c,
			TapCount:       classifier.TapCount(),
		})
	})

	s.sessions.Add(1)
	s.opts.Metrics.Attached(1)
	defer func() {
		classifier.Detach()
		s.opts.Metrics.Attached(-1)
		s.sessions.Add(-1)
	}()

	logger := s.logger.With("session", sess.id)
	logger.Info("websocket session opened", "remote", r.RemoteAddr)

	err = sess.serve(r.Context())
	switch {
	case err == nil,
		websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway,
		errors.Is(err, context.Canceled):
		logger.Info("websocket session closed")
	default:
		logger.Warn("websocket session ended", "error", err)
	}
}

// serve reads events until the client disconnects. Events are dispatched on
// this goroutine only, so the classifier never sees concurrent delivery.
func (sess *session) serve(ctx context.Context) error {
	if err := wsjson.Write(ctx, sess.conn, Message{Type: MessageSession, Session: sess.id}); err != nil {
		return err
	}
	for {
		var event events.Event
		if err := wsjson.Read(ctx, sess.conn, &event); err != nil {
			return err
		}
		if err := sess.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := event.Validate(); err != nil {
			if err := wsjson.Write(ctx, sess.conn, Message{Type: MessageError, Error: err.Error()}); err != nil {
				return err
			}
			continue
		}

		events.Dispatch(sess.classifier, sess.tracker, event)
		if sess.autoReset && sess.classifier.State().Terminal() && sess.tracker.Len() == 0 {
			sess.classifier.Reset()
		}
		if err := sess.flush(ctx); err != nil {
			return err
		}
	}
}

func (sess *session) flush(ctx context.Context) error {
	pending := sess.pending
	sess.pending = nil
	for _, msg := range pending {
		if err := wsjson.Write(ctx, sess.conn, msg); err != nil {
			return err
		}
	}
	return nil
}
