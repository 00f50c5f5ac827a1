package support

import (
	"errors"
	"fmt"
	"net/http/httptest"

	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/interactor"
	"github.com/MeKo-Tech/lumentrace/internal/server"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/spatial/r3"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// In-process drawing state
	Interactor *interactor.Interactor
	Group      *contour.Group
	Slice      *slice.Image
	Anchor     r3.Vec
	Handled    bool

	Updates []interactor.UpdateEvent
	Ends    []interactor.EndEvent
	Aborts  []interactor.AbortEvent

	// Server state
	HTTPServer  *httptest.Server
	DrawServer  *server.Server
	Conn        *websocket.Conn
	SliceID     int
	LastStatus  int
	LastBody    string
	LastReplies []server.ServerMessage
}

// NewTestContext returns an interactor wired to a fresh group and a
// recording listener.
func NewTestContext() *TestContext {
	tc := &TestContext{
		Interactor: interactor.New(interactor.DefaultConfig()),
		Group:      contour.NewGroup(),
	}
	tc.Interactor.SetGroup(tc.Group)
	tc.Interactor.SetListener(interactor.ListenerFuncs{
		OnUpdate: func(e interactor.UpdateEvent) { tc.Updates = append(tc.Updates, e) },
		OnEnd:    func(e interactor.EndEvent) { tc.Ends = append(tc.Ends, e) },
		OnAbort:  func(e interactor.AbortEvent) { tc.Aborts = append(tc.Aborts, e) },
	})
	return tc
}

// Cleanup closes any connection and server the scenario opened.
func (tc *TestContext) Cleanup() error {
	var errs []error
	if tc.Conn != nil {
		_ = tc.Conn.Close()
		tc.Conn = nil
	}
	if tc.DrawServer != nil {
		if err := tc.DrawServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sessions: %w", err))
		}
	}
	if tc.HTTPServer != nil {
		tc.HTTPServer.Close()
		tc.HTTPServer = nil
	}
	return errors.Join(errs...)
}

func (tc *TestContext) frame() *slice.Frame {
	f := tc.Interactor.Frame()
	return &f
}
