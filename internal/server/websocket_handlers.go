package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/ucrop/internal/cropper"
	"github.com/MeKo-Tech/ucrop/internal/engine"
	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/MeKo-Tech/ucrop/internal/gesture"
	"github.com/MeKo-Tech/ucrop/internal/overlay"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	frameInterval   = 16 * time.Millisecond
	pingInterval    = 30 * time.Second
	readTimeout     = 60 * time.Second
	defaultHitSlop  = 24.0
	msgTypeInvalid  = "invalid"
	errTypeRequest  = "invalid_request"
	errTypeGesture  = "gesture_error"
	errTypeAttached = "session_attached"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is left to the CORS setting of the HTTP routes.
		return true
	},
}

// PointJSON is a viewport point.
type PointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClientMessage is one input event from a session client.
//
// Types: begin, pan, scale, rotate, end, reset, double_tap, aspect,
// viewport, hit, drag, crop, cancel, state.
type ClientMessage struct {
	Type      string     `json:"type"`
	Gesture   string     `json:"gesture,omitempty"`
	DX        float64    `json:"dx,omitempty"`
	DY        float64    `json:"dy,omitempty"`
	Factor    float64    `json:"factor,omitempty"`
	Degrees   float64    `json:"degrees,omitempty"`
	Pivot     *PointJSON `json:"pivot,omitempty"`
	Ratio     string     `json:"ratio,omitempty"`
	Width     float64    `json:"width,omitempty"`
	Height    float64    `json:"height,omitempty"`
	Handle    string     `json:"handle,omitempty"`
	Threshold float64    `json:"threshold,omitempty"`
	Format    string     `json:"format,omitempty"`
	Quality   *int       `json:"quality,omitempty"`
	MaxWidth  int        `json:"max_width,omitempty"`
	MaxHeight int        `json:"max_height,omitempty"`

	parseErr error
}

// ServerMessage is one message to a session client.
//
// Types: state, event, hit, drag, crop_started, crop_result, error.
type ServerMessage struct {
	Type      string        `json:"type"`
	Event     string        `json:"event,omitempty"`
	State     *StateMessage `json:"state,omitempty"`
	Handle    string        `json:"handle,omitempty"`
	Changed   *bool         `json:"changed,omitempty"`
	Result    *CropResult   `json:"result,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorType string        `json:"error_type,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// sessionWebSocketHandler attaches a websocket to a session and drives its
// engine from the client's input events.
func (s *Server) sessionWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.get(r.PathValue("id"))
	if !ok {
		s.writeNotFound(w)
		return
	}
	if !sess.attach() {
		s.writeErrorResponse(w, ErrorResponse{Error: errTypeAttached, Message: "Session already has a client"}, http.StatusConflict)
		return
	}
	defer func() { sess.detach(time.Now()) }()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "session", sess.id, "remote_addr", r.RemoteAddr)
	ws := &wsSession{srv: s, sess: sess, conn: conn, logger: s.logger.With("session", sess.id)}
	ws.run(conn)
}

// wsSession is the state of one websocket attached to a session. All its
// methods run on the session loop goroutine.
type wsSession struct {
	srv    *Server
	sess   *session
	conn   WebSocketConnWriter
	logger *slog.Logger

	results    <-chan engine.Result
	resultID   string
	cancelCrop context.CancelFunc
	cropStart  time.Time
}

// run is the session loop: input events, animation frames, crop results and
// keep-alive pings are all handled here, one at a time.
func (ws *wsSession) run(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	incoming := make(chan ClientMessage)
	done := make(chan struct{})
	defer close(done)
	go ws.readLoop(conn, incoming, done)

	frame := time.NewTicker(frameInterval)
	defer frame.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer ws.detachCrop()

	ws.sendState()
	for {
		select {
		case msg, ok := <-incoming:
			if !ok {
				return
			}
			ws.handle(msg)
		case now := <-frame.C:
			ws.tick(now)
		case res := <-ws.results:
			ws.finishCrop(res)
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-ws.srv.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(time.Second))
			return
		}
	}
}

func (ws *wsSession) readLoop(conn *websocket.Conn, incoming chan<- ClientMessage, done <-chan struct{}) {
	defer close(incoming)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType != websocket.TextMessage {
			continue
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			msg = ClientMessage{Type: msgTypeInvalid, parseErr: err}
		}
		select {
		case incoming <- msg:
		case <-done:
			return
		}
	}
}

// handle applies one client event to the engine and reports the new state.
func (ws *wsSession) handle(msg ClientMessage) {
	ws.sess.mu.Lock()
	defer ws.sess.mu.Unlock()
	ws.sess.lastSeen = time.Now()

	e := ws.sess.engine
	ctrl := e.Controller()
	var err error
	switch msg.Type {
	case "begin":
		ctrl.Begin(parseGesture(msg.Gesture))
	case "pan":
		ctrl.Pan(msg.DX, msg.DY)
	case "scale":
		ctrl.Scale(msg.Factor, ws.pivot(msg.Pivot))
	case "rotate":
		ctrl.Rotate(msg.Degrees, ws.pivot(msg.Pivot))
	case "end":
		err = ctrl.End()
	case "reset":
		err = e.Reset()
	case "double_tap":
		err = ctrl.DoubleTap()
	case "aspect":
		var ratio overlay.AspectRatio
		if ratio, err = overlay.ParseAspectRatio(msg.Ratio); err == nil {
			err = e.SetAspectRatio(ratio)
		}
	case "viewport":
		err = e.ResizeViewport(geometry.Size{Width: msg.Width, Height: msg.Height})
	case "hit":
		threshold := msg.Threshold
		if threshold <= 0 {
			threshold = defaultHitSlop
		}
		h := e.Window().HitTest(ws.pivot(msg.Pivot), threshold)
		ws.send(ServerMessage{Type: "hit", Handle: h.String()})
		return
	case "drag":
		changed := e.Drag(overlay.ParseHandle(msg.Handle), geometry.Point{X: msg.DX, Y: msg.DY})
		ws.send(ServerMessage{Type: "drag", Handle: msg.Handle, Changed: &changed})
	case "crop":
		ws.startCrop(msg)
	case "cancel":
		e.Cancel()
	case "state":
	case msgTypeInvalid:
		ws.sendError(errTypeRequest, fmt.Sprintf("Failed to parse message: %v", msg.parseErr))
		return
	default:
		ws.sendError(errTypeRequest, "Unsupported message type: "+msg.Type)
		return
	}
	if err != nil {
		ws.sendError(errTypeGesture, err.Error())
	}
	ws.flush()
}

// tick advances a settle animation by one frame.
func (ws *wsSession) tick(now time.Time) {
	ws.sess.mu.Lock()
	defer ws.sess.mu.Unlock()
	if ws.sess.engine.Controller().Phase() != gesture.PhaseSettling {
		return
	}
	ws.sess.engine.Tick(now)
	ws.flush()
}

// pivot defaults to the window center. Callers hold the session lock.
func (ws *wsSession) pivot(p *PointJSON) geometry.Point {
	if p == nil {
		return ws.sess.engine.Window().Rect().Center()
	}
	return geometry.Point{X: p.X, Y: p.Y}
}

func (ws *wsSession) startCrop(msg ClientMessage) {
	e := ws.sess.engine
	rid := uuid.NewString()
	base := filepath.Join(ws.srv.workDir, ws.sess.id+"-"+rid)
	opts, err := ws.srv.outputOptions(msg.Format, msg.Quality, msg.MaxWidth, msg.MaxHeight, base)
	if err != nil {
		ws.sendCropError(rid, err)
		return
	}
	req, err := e.Commit(opts)
	if err != nil {
		ws.sendCropError(rid, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ws.srv.timeout)
	ch, err := e.Execute(ctx, req)
	if err != nil {
		cancel()
		ws.sendCropError(rid, err)
		return
	}
	ws.results, ws.resultID, ws.cancelCrop, ws.cropStart = ch, rid, cancel, time.Now()
	ws.send(ServerMessage{Type: "crop_started", RequestID: rid})
}

func (ws *wsSession) finishCrop(res engine.Result) {
	rid := ws.resultID
	ws.cancelCrop()
	cropDuration.WithLabelValues("websocket").Observe(time.Since(ws.cropStart).Seconds())
	ws.results, ws.cancelCrop = nil, nil
	if res.Err != nil {
		cropRequestsTotal.WithLabelValues("websocket", cropper.KindOf(res.Err).String()).Inc()
		ws.sendCropError(rid, res.Err)
		return
	}
	cropRequestsTotal.WithLabelValues("websocket", "success").Inc()
	observeOutput(res.Output)
	ws.sess.addResult(rid, res.Output.Path)
	url := "/sessions/" + ws.sess.id + "/results/" + rid
	ws.send(ServerMessage{Type: "crop_result", RequestID: rid, Result: cropResult(res.Output, url)})
}

// detachCrop keeps a crop that outlives the connection so its result can
// still be downloaded.
func (ws *wsSession) detachCrop() {
	if ws.results == nil {
		return
	}
	results, cancel, rid, sess := ws.results, ws.cancelCrop, ws.resultID, ws.sess
	ws.results = nil
	go func() {
		res := <-results
		cancel()
		if res.Err == nil {
			sess.addResult(rid, res.Output.Path)
		}
	}()
}

func parseGesture(s string) gesture.Kind {
	switch s {
	case "pan":
		return gesture.KindPan
	case "scale":
		return gesture.KindScale
	case "rotate":
		return gesture.KindRotate
	}
	return gesture.KindNone
}

// flush sends queued engine notifications followed by the state. Callers
// hold the session lock.
func (ws *wsSession) flush() {
	for _, ev := range ws.sess.takeEvents() {
		ws.send(ServerMessage{Type: "event", Event: ev})
	}
	state := stateOf(ws.sess.engine)
	ws.send(ServerMessage{Type: "state", State: &state})
}

func (ws *wsSession) sendState() {
	ws.sess.mu.Lock()
	defer ws.sess.mu.Unlock()
	ws.flush()
}

func (ws *wsSession) sendCropError(rid string, err error) {
	ws.send(ServerMessage{
		Type:      "error",
		RequestID: rid,
		Error:     cropper.Message(err),
		ErrorType: errorCode(err),
	})
}

// sendError sends an error message over WebSocket.
func (ws *wsSession) sendError(errorType, message string) {
	ws.send(ServerMessage{Type: "error", Error: message, ErrorType: errorType})
}

// send writes a message over WebSocket.
func (ws *wsSession) send(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		ws.logger.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := ws.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		ws.logger.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
