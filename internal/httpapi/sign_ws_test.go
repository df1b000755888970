package httpapi

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signbridge/backend/internal/audio"
	"github.com/signbridge/backend/internal/landmark"
)

// wsResponse covers every outbound event shape for test assertions.
type wsResponse struct {
	Type       string           `json:"type"`
	TS         int64            `json:"ts"`
	Token      string           `json:"token"`
	Confidence float64          `json:"confidence"`
	StableMs   int64            `json:"stable_ms"`
	Commit     bool             `json:"commit"`
	Landmarks  []landmark.Point `json:"landmarks"`
	Final      bool             `json:"final"`
	Text       string           `json:"text"`
	Words      []map[string]any `json:"words"`
	Request    string           `json:"request"`
	Message    string           `json:"message"`
}

// closedHand is a degenerate 21-point hand whose features classify
// deterministically as STOP.
func closedHand() []landmark.Point {
	points := make([]landmark.Point, landmark.NumLandmarks)
	for i := range points {
		points[i] = landmark.Point{X: 0.5, Y: 0.5, Z: 0.5}
	}
	return points
}

func dialTestWS(t *testing.T, handler http.Handler) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) wsResponse {
	t.Helper()
	var resp wsResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp
}

func sendMessage(t *testing.T, conn *websocket.Conn, msg map[string]string) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write message: %v", err)
	}
}

func TestSignWSFrameFlow(t *testing.T) {
	router := newTestRouter(t, RouterConfig{}, Deps{
		Detector: landmark.NewMockDetector(closedHand(), nil),
	})
	conn := dialTestWS(t, router)

	frame := base64.StdEncoding.EncodeToString([]byte("fake jpeg"))

	// One response per frame, in order, each echoing the detected hand.
	const n = 10
	for i := 0; i < n; i++ {
		sendMessage(t, conn, map[string]string{"type": "frame", "image_b64": frame})
	}
	for i := 0; i < n; i++ {
		resp := readResponse(t, conn)
		if resp.Type != "prediction" {
			t.Fatalf("response %d type = %q, want prediction", i, resp.Type)
		}
		if resp.Token != "STOP" {
			t.Errorf("response %d token = %q, want STOP", i, resp.Token)
		}
		if len(resp.Landmarks) != landmark.NumLandmarks {
			t.Errorf("response %d landmarks = %d, want %d", i, len(resp.Landmarks), landmark.NumLandmarks)
		}
		if resp.TS == 0 {
			t.Errorf("response %d has no timestamp", i)
		}
	}
}

func TestSignWSNoHandYieldsNone(t *testing.T) {
	router := newTestRouter(t, RouterConfig{}, Deps{
		Detector: landmark.NewMockDetector(nil, nil),
	})
	conn := dialTestWS(t, router)

	frame := base64.StdEncoding.EncodeToString([]byte("fake jpeg"))
	sendMessage(t, conn, map[string]string{"type": "frame", "image_b64": frame})

	resp := readResponse(t, conn)
	if resp.Type != "prediction" {
		t.Fatalf("type = %q, want prediction", resp.Type)
	}
	if resp.Token != "NONE" {
		t.Errorf("token = %q, want NONE", resp.Token)
	}
	if resp.Commit {
		t.Error("commit = true for NONE")
	}
	if resp.Landmarks == nil || len(resp.Landmarks) != 0 {
		t.Errorf("landmarks = %v, want empty array", resp.Landmarks)
	}
}

func TestSignWSBadFramePayloadDegradesToNone(t *testing.T) {
	router := newTestRouter(t, RouterConfig{}, Deps{
		Detector: landmark.NewMockDetector(closedHand(), nil),
	})
	conn := dialTestWS(t, router)

	sendMessage(t, conn, map[string]string{"type": "frame", "image_b64": "!!! not base64 !!!"})

	resp := readResponse(t, conn)
	if resp.Type != "prediction" {
		t.Fatalf("type = %q, want prediction", resp.Type)
	}
	if resp.Token != "NONE" {
		t.Errorf("token = %q, want NONE for an undecodable frame", resp.Token)
	}

	// The connection survives and keeps serving.
	frame := base64.StdEncoding.EncodeToString([]byte("fake jpeg"))
	sendMessage(t, conn, map[string]string{"type": "frame", "image_b64": frame})
	if resp := readResponse(t, conn); resp.Token != "STOP" {
		t.Errorf("follow-up token = %q, want STOP", resp.Token)
	}
}

func TestSignWSStreamingAudio(t *testing.T) {
	router := newTestRouter(t, RouterConfig{}, Deps{})
	conn := dialTestWS(t, router)

	chunk := base64.StdEncoding.EncodeToString(make([]byte, 100))

	// The mock decoder finalizes every fourth chunk.
	for i := 0; i < 4; i++ {
		sendMessage(t, conn, map[string]string{"type": "audio", "audio_b64": chunk})
	}
	for i := 0; i < 3; i++ {
		resp := readResponse(t, conn)
		if resp.Type != "speech" || resp.Final {
			t.Fatalf("response %d = %+v, want non-final speech", i, resp)
		}
	}
	resp := readResponse(t, conn)
	if resp.Type != "speech" || !resp.Final {
		t.Fatalf("fourth response = %+v, want final speech", resp)
	}
	if resp.Text != "utterance 400" {
		t.Errorf("final text = %q, want %q", resp.Text, "utterance 400")
	}
}

func TestSignWSAudioFileTranscript(t *testing.T) {
	pcm := make([]byte, 3200)
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := audio.WriteWAV(path, pcm); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	wavBytes, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}

	router := newTestRouter(t, RouterConfig{}, Deps{})
	conn := dialTestWS(t, router)

	sendMessage(t, conn, map[string]string{
		"type":          "audio_file",
		"audio_mp3_b64": base64.StdEncoding.EncodeToString(wavBytes),
	})

	resp := readResponse(t, conn)
	if resp.Type != "audio_file_transcript" {
		t.Fatalf("type = %q, want audio_file_transcript", resp.Type)
	}
	if resp.Text != "mock transcript" {
		t.Errorf("text = %q, want %q", resp.Text, "mock transcript")
	}
	if len(resp.Words) != 2 {
		t.Errorf("words = %d entries, want 2", len(resp.Words))
	}
}

func TestSignWSAudioFileDecodeFailure(t *testing.T) {
	router := newTestRouter(t, RouterConfig{}, Deps{})
	conn := dialTestWS(t, router)

	sendMessage(t, conn, map[string]string{
		"type":          "audio_file",
		"audio_mp3_b64": base64.StdEncoding.EncodeToString([]byte("not audio at all")),
	})

	resp := readResponse(t, conn)
	if resp.Type != "error" {
		t.Fatalf("type = %q, want error", resp.Type)
	}
	if resp.Request != "audio_file" {
		t.Errorf("request = %q, want audio_file", resp.Request)
	}

	// The failure is scoped to that one request.
	chunk := base64.StdEncoding.EncodeToString(make([]byte, 100))
	sendMessage(t, conn, map[string]string{"type": "audio", "audio_b64": chunk})
	if resp := readResponse(t, conn); resp.Type != "speech" {
		t.Errorf("follow-up type = %q, want speech", resp.Type)
	}
}

func TestSignWSUnknownTypeIgnored(t *testing.T) {
	router := newTestRouter(t, RouterConfig{}, Deps{
		Detector: landmark.NewMockDetector(closedHand(), nil),
	})
	conn := dialTestWS(t, router)

	sendMessage(t, conn, map[string]string{"type": "telemetry", "payload": "x"})

	// No response for the unknown type; the next frame's prediction is
	// the first thing on the wire.
	frame := base64.StdEncoding.EncodeToString([]byte("fake jpeg"))
	sendMessage(t, conn, map[string]string{"type": "frame", "image_b64": frame})

	resp := readResponse(t, conn)
	if resp.Type != "prediction" {
		t.Fatalf("type = %q, want prediction", resp.Type)
	}
}

func TestSignWSMixedTrafficKeepsOrder(t *testing.T) {
	router := newTestRouter(t, RouterConfig{}, Deps{
		Detector: landmark.NewMockDetector(closedHand(), nil),
	})
	conn := dialTestWS(t, router)

	frame := base64.StdEncoding.EncodeToString([]byte("fake jpeg"))
	chunk := base64.StdEncoding.EncodeToString(make([]byte, 100))

	var wantTypes []string
	for i := 0; i < 6; i++ {
		if i%2 == 0 {
			sendMessage(t, conn, map[string]string{"type": "frame", "image_b64": frame})
			wantTypes = append(wantTypes, "prediction")
		} else {
			sendMessage(t, conn, map[string]string{"type": "audio", "audio_b64": chunk})
			wantTypes = append(wantTypes, "speech")
		}
	}

	for i, want := range wantTypes {
		resp := readResponse(t, conn)
		if resp.Type != want {
			t.Fatalf("response %d type = %q, want %q (%s)", i, resp.Type, want,
				fmt.Sprintf("full order %v", wantTypes))
		}
	}
}
