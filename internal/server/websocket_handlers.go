package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/interactor"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/MeKo-Tech/lumentrace/internal/utils"
	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/spatial/r3"
)

// Client message types.
const (
	msgSlice    = "slice"
	msgPointer  = "pointer"
	msgCancel   = "cancel"
	msgSettings = "settings"
)

// Server message types.
const (
	msgAck     = "ack"
	msgUpdate  = "update"
	msgEnd     = "end"
	msgAborted = "aborted"
	msgError   = "error"
)

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// ClientMessage is one request from the drawing client.
type ClientMessage struct {
	Type     string           `json:"type"`
	Slice    *SliceRequest    `json:"slice,omitempty"`
	Pointer  *PointerRequest  `json:"pointer,omitempty"`
	Settings *SettingsRequest `json:"settings,omitempty"`
}

// SliceRequest uploads a slice image and/or moves the path point. Without an
// image the last uploaded one is re-cut at the new path point.
type SliceRequest struct {
	Image       []byte           `json:"image,omitempty"` // base64 in JSON
	Spacing     float64          `json:"spacing,omitempty"`
	SpacingY    float64          `json:"spacing_y,omitempty"`
	SmoothSigma *float64         `json:"smooth_sigma,omitempty"`
	Invert      *bool            `json:"invert,omitempty"`
	PathPoint   *slice.PathPoint `json:"path_point,omitempty"`
}

// PointerRequest is a pointer event. Exactly one of World or Pixel locates it.
// SliceID names the slice the client drew against; zero means the current one.
type PointerRequest struct {
	Kind    string      `json:"kind"`
	World   *[3]float64 `json:"world,omitempty"`
	Pixel   *[2]float64 `json:"pixel,omitempty"`
	SliceID int         `json:"slice_id,omitempty"`
}

// SettingsRequest changes engine parameters for subsequent sessions.
type SettingsRequest struct {
	ScaleBase   *float64 `json:"scale_base,omitempty"`
	ResliceSize *float64 `json:"reslice_size,omitempty"`
	TimeStep    *int     `json:"time_step,omitempty"`
}

// SliceInfo describes the slice a session draws on.
type SliceInfo struct {
	ID       int         `json:"id"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	SpacingX float64     `json:"spacing_x"`
	SpacingY float64     `json:"spacing_y"`
	Min      float64     `json:"min"`
	Max      float64     `json:"max"`
	Frame    slice.Frame `json:"frame"`
}

// ServerMessage is every message the server sends.
type ServerMessage struct {
	Type          string           `json:"type"`
	State         string           `json:"state,omitempty"`
	Handled       bool             `json:"handled,omitempty"`
	Slice         *SliceInfo       `json:"slice,omitempty"`
	Contour       *contour.Summary `json:"contour,omitempty"`
	TimeStep      int              `json:"time_step"`
	Threshold     float64          `json:"threshold,omitempty"`
	Seed          *[2]int          `json:"seed,omitempty"`
	SeedIntensity float64          `json:"seed_intensity,omitempty"`
	RegionPixels  int              `json:"region_pixels,omitempty"`
	Mean          float64          `json:"mean,omitempty"`
	StdDev        float64          `json:"std_dev,omitempty"`
	Updates       int              `json:"updates,omitempty"`
	DurationMs    int64            `json:"duration_ms,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Error         string           `json:"error,omitempty"`
	ErrorType     string           `json:"error_type,omitempty"`
}

// wsSession is one connection with its own interactor. All interactor calls
// happen on the connection's read goroutine.
type wsSession struct {
	srv      *Server
	conn     *websocket.Conn
	out      WebSocketConnWriter
	clientID string

	it      *interactor.Interactor
	sampler *slice.PlanarSampler
	img     *slice.Image
	sliceID int

	closing   bool
	closeOnce sync.Once
	done      chan struct{}
}

func (s *Server) newSession(out WebSocketConnWriter, clientID string) *wsSession {
	ws := &wsSession{
		srv:      s,
		out:      out,
		clientID: clientID,
		it:       interactor.New(s.engine),
		done:     make(chan struct{}),
	}
	ws.it.SetPathPoint(s.pathPoint)
	ws.it.SetGroup(s.group)
	ws.it.SetListener(ws)
	return ws
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return s.corsOrigin == "" || s.corsOrigin == "*" || origin == "" || origin == s.corsOrigin
}

// drawWebSocketHandler upgrades the connection and serves one drawing client.
func (s *Server) drawWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	ws := s.newSession(conn, getClientIP(r))
	ws.conn = conn
	s.register(ws)
	defer s.unregister(ws)

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	ws.serve()
}

// serve reads messages until the connection drops, then aborts any session
// still drawing.
func (ws *wsSession) serve() {
	defer func() {
		ws.closing = true
		ws.it.ClearDrawing()
		_ = ws.close()
	}()

	timeout := time.Duration(ws.srv.timeoutSec) * time.Second
	conn := ws.conn
	conn.SetReadLimit(2*ws.srv.maxSliceMB<<20 + 1<<16)
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		return nil
	})

	go func() {
		ticker := time.NewTicker(timeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ws.done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(timeout))

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			ws.handleMessage(data)
		}
	}
}

func (ws *wsSession) close() error {
	var err error
	ws.closeOnce.Do(func() {
		close(ws.done)
		if ws.conn != nil {
			err = ws.conn.Close()
		}
	})
	return err
}

// handleMessage processes one client message.
func (ws *wsSession) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ws.sendError("invalid_request", fmt.Sprintf("Failed to parse message: %v", err))
		return
	}

	switch msg.Type {
	case msgSlice:
		ws.handleSlice(msg.Slice)
	case msgPointer:
		ws.handlePointer(msg.Pointer)
	case msgCancel:
		ws.sendAck(ws.it.ClearDrawing())
	case msgSettings:
		ws.handleSettings(msg.Settings)
	default:
		ws.sendError("invalid_request", "Unsupported message type: "+msg.Type)
	}
}

func (ws *wsSession) handleSlice(req *SliceRequest) {
	if req == nil {
		ws.sendError("invalid_request", "Missing slice payload")
		return
	}
	if len(req.Image) == 0 && ws.sampler == nil {
		ws.sendError("invalid_request", "No slice image provided")
		return
	}
	if req.PathPoint != nil && r3.Norm(req.PathPoint.Tangent) == 0 {
		ws.sendError("invalid_request", "Path point tangent must not be zero")
		return
	}

	if len(req.Image) > 0 {
		size := int64(len(req.Image))
		sliceSizeBytes.Observe(float64(size))
		if size > ws.srv.maxSliceMB<<20 {
			ws.sendError("slice_too_large", fmt.Sprintf("Slice is %d bytes, limit is %d MB", size, ws.srv.maxSliceMB))
			return
		}
		if rl := ws.srv.rateLimiter; rl != nil {
			if err := rl.CheckSlice(ws.clientID, size); err != nil {
				recordRateLimitHit(err)
				ws.sendError("quota_exceeded", err.Error())
				return
			}
		}

		src, _, err := utils.DecodeImage(bytes.NewReader(req.Image))
		if err != nil {
			ws.sendError("processing_error", fmt.Sprintf("Failed to decode slice: %v", err))
			return
		}

		opts := ws.srv.sampler
		if req.Spacing > 0 {
			opts.SpacingX = req.Spacing
			opts.SpacingY = req.SpacingY
		}
		if req.SmoothSigma != nil {
			opts.SmoothSigma = *req.SmoothSigma
		}
		if req.Invert != nil {
			opts.Invert = *req.Invert
		}
		ws.sampler = slice.NewPlanarSampler(src, opts)
	}

	if req.PathPoint != nil {
		ws.it.SetPathPoint(*req.PathPoint)
	}

	img, err := ws.sampler.Sample(ws.it.PathPoint(), 0)
	if err != nil {
		ws.sendError("processing_error", fmt.Sprintf("Failed to cut slice: %v", err))
		return
	}
	if ws.img != nil {
		ws.img.Invalidate()
	}
	ws.img = img
	ws.sliceID++
	ws.it.SetImageSlice(img)

	sx, sy := img.Spacing()
	lo, hi := img.Range()
	ws.send(ServerMessage{
		Type:     msgAck,
		State:    ws.it.State().String(),
		Handled:  true,
		TimeStep: ws.it.TimeStep(),
		Slice: &SliceInfo{
			ID:       ws.sliceID,
			Width:    img.Width(),
			Height:   img.Height(),
			SpacingX: sx,
			SpacingY: sy,
			Min:      lo,
			Max:      hi,
			Frame:    img.Frame(),
		},
	})
}

func (ws *wsSession) handlePointer(req *PointerRequest) {
	if req == nil {
		ws.sendError("invalid_request", "Missing pointer payload")
		return
	}
	kind, err := interactor.ParseEventKind(req.Kind)
	if err != nil {
		ws.sendError("invalid_request", err.Error())
		return
	}

	var world r3.Vec
	switch {
	case kind == interactor.Cancel:
	case req.World != nil:
		world = r3.Vec{X: req.World[0], Y: req.World[1], Z: req.World[2]}
	case req.Pixel != nil:
		if ws.img == nil {
			ws.sendError("invalid_request", "Pixel positions need a slice")
			return
		}
		world = ws.img.PixelToWorld(req.Pixel[0], req.Pixel[1])
	default:
		ws.sendError("invalid_request", "Pointer event has no position")
		return
	}

	// events drawn against an older slice carry no usable frame
	var frame *slice.Frame
	if ws.img != nil && (req.SliceID == 0 || req.SliceID == ws.sliceID) {
		f := ws.img.Frame()
		frame = &f
	}

	before := ws.it.State()
	start := time.Now()
	handled := ws.it.Handle(interactor.Event{Kind: kind, World: world, Frame: frame})
	pointerEventDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())

	if before == interactor.Idle && ws.it.State() == interactor.Drawing {
		drawingSessionsTotal.WithLabelValues("started").Inc()
	}
	ws.sendAck(handled)
}

func (ws *wsSession) handleSettings(req *SettingsRequest) {
	if req == nil {
		ws.sendError("invalid_request", "Missing settings payload")
		return
	}
	if req.ScaleBase != nil {
		if *req.ScaleBase < 0 {
			ws.sendError("invalid_request", "scale_base must not be negative")
			return
		}
		ws.it.SetScaleBase(*req.ScaleBase)
	}
	if req.ResliceSize != nil {
		if *req.ResliceSize < 0 {
			ws.sendError("invalid_request", "reslice_size must not be negative")
			return
		}
		ws.it.SetResliceSize(*req.ResliceSize)
	}
	if req.TimeStep != nil {
		ws.it.SetTimeStep(*req.TimeStep)
	}
	ws.sendAck(true)
}

// ContourUpdated implements interactor.Listener.
func (ws *wsSession) ContourUpdated(e interactor.UpdateEvent) {
	sum := contour.Summarize(e.Contour)
	ws.send(ServerMessage{
		Type:          msgUpdate,
		State:         ws.it.State().String(),
		Contour:       &sum,
		TimeStep:      e.TimeStep,
		Threshold:     e.Threshold,
		Seed:          &[2]int{e.Seed.X, e.Seed.Y},
		SeedIntensity: e.SeedIntensity,
		RegionPixels:  e.RegionPixels,
		Mean:          e.Mean,
		StdDev:        e.StdDev,
		DurationMs:    e.Elapsed.Milliseconds(),
	})
}

// ContourEnded implements interactor.Listener.
func (ws *wsSession) ContourEnded(e interactor.EndEvent) {
	drawingSessionsTotal.WithLabelValues("committed").Inc()
	committedContourPoints.Observe(float64(e.Contour.Len()))

	sum := contour.Summarize(e.Contour)
	ws.send(ServerMessage{
		Type:       msgEnd,
		State:      ws.it.State().String(),
		Contour:    &sum,
		TimeStep:   e.TimeStep,
		Threshold:  e.Threshold,
		Updates:    e.Updates,
		DurationMs: e.Duration.Milliseconds(),
	})
}

// SessionAborted implements interactor.Listener.
func (ws *wsSession) SessionAborted(e interactor.AbortEvent) {
	reason := abortReason(e.Reason)
	drawingSessionsTotal.WithLabelValues("aborted").Inc()
	drawingAbortsTotal.WithLabelValues(reason).Inc()

	ws.send(ServerMessage{
		Type:     msgAborted,
		State:    ws.it.State().String(),
		TimeStep: e.TimeStep,
		Reason:   reason,
		Error:    e.Reason.Error(),
	})
}

// abortReason maps an abort cause to a stable label.
func abortReason(err error) string {
	switch {
	case errors.Is(err, interactor.ErrCancelled):
		return "cancelled"
	case errors.Is(err, interactor.ErrNoSlice):
		return "no_slice"
	case errors.Is(err, interactor.ErrStaleSlice):
		return "stale_slice"
	case errors.Is(err, interactor.ErrNotOnPlane):
		return "not_on_plane"
	case errors.Is(err, interactor.ErrNoContour):
		return "no_contour"
	default:
		return "other"
	}
}

func (ws *wsSession) sendAck(handled bool) {
	ws.send(ServerMessage{
		Type:      msgAck,
		State:     ws.it.State().String(),
		Handled:   handled,
		TimeStep:  ws.it.TimeStep(),
		Threshold: ws.it.CurrentValue(),
	})
}

// send writes msg to the client. Nothing is written once the session closes.
func (ws *wsSession) send(msg ServerMessage) {
	if ws.closing {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}

	if err := ws.out.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendError sends an error message over WebSocket.
func (ws *wsSession) sendError(errorType, message string) {
	ws.send(ServerMessage{
		Type:      msgError,
		State:     ws.it.State().String(),
		Error:     message,
		ErrorType: errorType,
	})
}
