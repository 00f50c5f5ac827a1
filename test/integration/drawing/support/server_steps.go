package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/MeKo-Tech/lumentrace/internal/interactor"
	"github.com/MeKo-Tech/lumentrace/internal/server"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

// RegisterServerSteps registers the HTTP and WebSocket steps.
func (tc *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a running drawing server$`, tc.startServer)
	sc.Step(`^I request "([^"]*)"$`, tc.getRequest)
	sc.Step(`^I send a DELETE request to "([^"]*)"$`, tc.deleteRequest)
	sc.Step(`^the response status should be (\d+)$`, tc.responseStatus)
	sc.Step(`^the response should contain "([^"]*)"$`, tc.responseContains)

	sc.Step(`^I open a drawing session$`, tc.openSession)
	sc.Step(`^I upload a (\d+)x(\d+) centre spike slice of intensity (\d+)$`, tc.uploadSpike)
	sc.Step(`^I send pointer "(down|move|up)" at pixel (\d+),(\d+)$`, tc.sendPointer)
	sc.Step(`^I send pointer "(down|move|up)" at pixel (\d+),(\d+) for slice (\d+)$`, tc.sendPointerForSlice)
	sc.Step(`^I switch the session to time step (\d+)$`, tc.switchTimeStep)
	sc.Step(`^I cancel the session$`, tc.cancelSession)
	sc.Step(`^the server replies with "([^"]*)"$`, tc.repliesWith)
	sc.Step(`^the last acknowledgement reports (handled|ignored)$`, tc.ackReports)
	sc.Step(`^the server stores (\d+) contours?$`, tc.serverStores)
}

func (tc *TestContext) startServer() error {
	srv, err := server.NewServer(server.Config{
		Host:       "localhost",
		CORSOrigin: "*",
		MaxSliceMB: 1,
		TimeoutSec: 5,
		Engine:     interactor.DefaultConfig(),
	})
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	tc.DrawServer = srv
	tc.HTTPServer = httptest.NewServer(mux)
	return nil
}

func (tc *TestContext) do(method, path string) error {
	if tc.HTTPServer == nil {
		return errors.New("server not started")
	}
	req, err := http.NewRequestWithContext(context.Background(), method, tc.HTTPServer.URL+path, nil)
	if err != nil {
		return err
	}
	resp, err := tc.HTTPServer.Client().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.LastStatus = resp.StatusCode
	tc.LastBody = string(body)
	return nil
}

func (tc *TestContext) getRequest(path string) error    { return tc.do(http.MethodGet, path) }
func (tc *TestContext) deleteRequest(path string) error { return tc.do(http.MethodDelete, path) }

func (tc *TestContext) responseStatus(code int) error {
	if tc.LastStatus != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, tc.LastStatus, tc.LastBody)
	}
	return nil
}

func (tc *TestContext) responseContains(s string) error {
	if !strings.Contains(tc.LastBody, s) {
		return fmt.Errorf("response does not contain %q: %s", s, tc.LastBody)
	}
	return nil
}

func (tc *TestContext) openSession() error {
	if tc.HTTPServer == nil {
		return errors.New("server not started")
	}
	url := "ws" + strings.TrimPrefix(tc.HTTPServer.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	_ = resp.Body.Close()
	tc.Conn = conn
	return nil
}

// exchange sends msg and collects every reply up to and including the
// acknowledgement or error that closes it.
func (tc *TestContext) exchange(msg server.ClientMessage) error {
	if tc.Conn == nil {
		return errors.New("no drawing session open")
	}
	if err := tc.Conn.WriteJSON(msg); err != nil {
		return err
	}
	tc.LastReplies = nil
	for {
		if err := tc.Conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
			return err
		}
		var reply server.ServerMessage
		if err := tc.Conn.ReadJSON(&reply); err != nil {
			return fmt.Errorf("read reply: %w", err)
		}
		tc.LastReplies = append(tc.LastReplies, reply)
		if reply.Type == "ack" || reply.Type == "error" {
			return nil
		}
	}
}

func (tc *TestContext) uploadSpike(w, h, v int) error {
	img := image.NewGray(image.Rect(0, 0, w, h))
	img.SetGray(w/2, h/2, color.Gray{Y: uint8(min(v, 255))})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}

	if err := tc.exchange(server.ClientMessage{Type: "slice", Slice: &server.SliceRequest{Image: buf.Bytes()}}); err != nil {
		return err
	}
	last := tc.LastReplies[len(tc.LastReplies)-1]
	if last.Type != "ack" || last.Slice == nil {
		return fmt.Errorf("slice upload failed: %s", last.Error)
	}
	tc.SliceID = last.Slice.ID
	return nil
}

func (tc *TestContext) sendPointer(kind string, x, y int) error {
	return tc.sendPointerForSlice(kind, x, y, 0)
}

func (tc *TestContext) sendPointerForSlice(kind string, x, y, sliceID int) error {
	return tc.exchange(server.ClientMessage{Type: "pointer", Pointer: &server.PointerRequest{
		Kind:    kind,
		Pixel:   &[2]float64{float64(x), float64(y)},
		SliceID: sliceID,
	}})
}

func (tc *TestContext) switchTimeStep(t int) error {
	return tc.exchange(server.ClientMessage{Type: "settings", Settings: &server.SettingsRequest{TimeStep: &t}})
}

func (tc *TestContext) cancelSession() error {
	return tc.exchange(server.ClientMessage{Type: "cancel"})
}

func (tc *TestContext) repliesWith(types string) error {
	var got []string
	for _, r := range tc.LastReplies {
		got = append(got, r.Type)
	}
	if want := strings.Split(types, ", "); strings.Join(got, ", ") != strings.Join(want, ", ") {
		return fmt.Errorf("expected replies %v, got %v", want, got)
	}
	return nil
}

func (tc *TestContext) ackReports(want string) error {
	if len(tc.LastReplies) == 0 {
		return errors.New("no replies received")
	}
	last := tc.LastReplies[len(tc.LastReplies)-1]
	if last.Type != "ack" {
		return fmt.Errorf("last reply is %s, not an ack", last.Type)
	}
	if last.Handled != (want == "handled") {
		return fmt.Errorf("expected ack %s, handled=%v", want, last.Handled)
	}
	return nil
}

func (tc *TestContext) serverStores(n int) error {
	if err := tc.getRequest("/contours"); err != nil {
		return err
	}
	var resp server.ContoursResponse
	if err := json.Unmarshal([]byte(tc.LastBody), &resp); err != nil {
		return fmt.Errorf("decode contours: %w", err)
	}
	if resp.Count != n {
		return fmt.Errorf("expected %d stored contours, got %d", n, resp.Count)
	}
	return nil
}
