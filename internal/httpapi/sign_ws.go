package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/signbridge/backend/internal/audio"
	"github.com/signbridge/backend/internal/eventlog"
	"github.com/signbridge/backend/internal/gesture"
	"github.com/signbridge/backend/internal/landmark"
	"github.com/signbridge/backend/internal/metrics"
	"github.com/signbridge/backend/internal/notifications"
	"github.com/signbridge/backend/internal/speech"
	"github.com/signbridge/backend/internal/store"
	"github.com/signbridge/backend/internal/worker"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientMessage is the inbound protocol: one JSON object per unit.
type clientMessage struct {
	Type        string `json:"type"`
	ImageB64    string `json:"image_b64,omitempty"`
	AudioB64    string `json:"audio_b64,omitempty"`
	AudioMP3B64 string `json:"audio_mp3_b64,omitempty"`
}

type predictionEvent struct {
	Type       string           `json:"type"`
	TS         int64            `json:"ts"`
	Token      string           `json:"token"`
	Confidence float64          `json:"confidence"`
	StableMs   int64            `json:"stable_ms"`
	Commit     bool             `json:"commit"`
	Landmarks  []landmark.Point `json:"landmarks"`
}

type speechEvent struct {
	Type  string `json:"type"`
	Final bool   `json:"final"`
	Text  string `json:"text"`
}

type transcriptEvent struct {
	Type  string        `json:"type"`
	Text  string        `json:"text"`
	Words []speech.Word `json:"words"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Request string `json:"request"`
	Message string `json:"message"`
}

// frameResult carries an offloaded detection+classification back to the
// connection's serial processing order.
type frameResult struct {
	points  []landmark.Point
	pred    gesture.Prediction
	elapsed time.Duration
	err     error
}

type fileResult struct {
	res     speech.Result
	elapsed time.Duration
	err     error
}

// workUnit is one inbound unit queued for the response writer. Frame and
// audio-file units resolve through a promise channel because their heavy
// work runs on the shared pool; streaming audio chunks mutate decoder
// state and are processed by the writer itself.
type workUnit struct {
	kind  string // "frame", "audio" or "audio_file"
	pcm   []byte
	frame chan frameResult
	file  chan fileResult
}

// signSession serves one WebSocket connection. The reader goroutine
// decodes payloads and submits heavy work to the pool; the writer drains
// the pending queue in submission order, so responses never reorder even
// though inference runs concurrently. Stabilizer and streaming speech
// state are touched only by the writer.
type signSession struct {
	id     string
	conn   *websocket.Conn
	connMu sync.Mutex

	detector   landmark.Detector
	classify   gesture.Classifier
	stabilizer *gesture.Stabilizer
	speech     *speech.Session
	normalizer *audio.Normalizer
	pool       *worker.Pool

	store    *store.Store
	eventLog *eventlog.Logger
	metrics  *metrics.Metrics
	apns     *notifications.APNsClient
	discord  *notifications.Discord

	alertTokens  map[gesture.Token]bool
	inferTimeout time.Duration

	pending    chan workUnit
	writerDone chan struct{}

	logger *log.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func (r *Router) handleSignWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("sign_ws: upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(req.Context())

	session := &signSession{
		id:           uuid.NewString(),
		conn:         conn,
		detector:     r.deps.Detector,
		classify:     r.deps.Classifier,
		stabilizer:   gesture.NewStabilizer(),
		speech:       speech.NewSession(r.deps.SpeechEngine, r.logger),
		normalizer:   r.deps.Normalizer,
		pool:         r.deps.Pool,
		store:        r.store,
		eventLog:     r.eventLog,
		metrics:      r.deps.Metrics,
		apns:         r.apns,
		discord:      r.discord,
		alertTokens:  r.alertTokens,
		inferTimeout: r.cfg.InferenceTimeout,
		pending:      make(chan workUnit, 64),
		writerDone:   make(chan struct{}),
		logger:       r.logger,
		ctx:          ctx,
		cancel:       cancel,
	}

	if session.metrics != nil {
		session.metrics.ActiveSessions.Inc()
		session.metrics.SessionsTotal.Inc()
	}
	if session.store.Enabled() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := session.store.CreateSession(ctx, store.Session{
				ID:         session.id,
				RemoteAddr: req.RemoteAddr,
				StartedAt:  nowUTC(),
			}); err != nil {
				session.logger.Printf("sign_ws: failed to record session %s: %v", session.id, err)
			}
		}()
	}
	session.eventLog.LogAsync(session.id, eventlog.EventSessionStarted, map[string]any{
		"remote_addr": req.RemoteAddr,
	})

	r.logger.Printf("sign_ws: session %s started from %s", session.id, req.RemoteAddr)
	session.run()
}

func (s *signSession) run() {
	defer s.cleanup()

	go s.writeLoop()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("sign_ws: session %s closed", s.id)
			} else {
				s.logger.Printf("sign_ws: read error for session %s: %v", s.id, err)
			}
			return
		}

		var in clientMessage
		if err := json.Unmarshal(msg, &in); err != nil {
			s.logger.Printf("sign_ws: session %s sent malformed JSON: %v", s.id, err)
			continue
		}

		switch in.Type {
		case "frame":
			s.enqueueFrame(in.ImageB64)
		case "audio":
			s.enqueueAudio(in.AudioB64)
		case "audio_file":
			s.enqueueAudioFile(in.AudioMP3B64)
		default:
			// Unknown types are ignored, not a protocol error.
			s.logger.Printf("sign_ws: session %s sent unknown type %q", s.id, in.Type)
		}
	}
}

// enqueueFrame offloads detection and classification to the pool and
// queues a promise so the writer emits results in arrival order. A bad
// payload degrades to a NONE prediction for this one frame.
func (s *signSession) enqueueFrame(imageB64 string) {
	result := make(chan frameResult, 1)

	image, err := base64.StdEncoding.DecodeString(imageB64)
	if err != nil {
		result <- frameResult{pred: gesture.Prediction{Token: gesture.TokenNone}, err: fmt.Errorf("invalid base64 image: %w", err)}
	} else if !s.pool.Submit(func() { result <- s.detectFrame(image) }) {
		result <- frameResult{pred: gesture.Prediction{Token: gesture.TokenNone}}
	}

	s.enqueue(workUnit{kind: "frame", frame: result})
}

func (s *signSession) detectFrame(image []byte) frameResult {
	ctx := s.ctx
	if s.inferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.inferTimeout)
		defer cancel()
	}

	start := time.Now()
	points, err := s.detector.Detect(ctx, image)
	if err != nil {
		// Timeout or detector failure is a NONE result for this unit.
		return frameResult{pred: gesture.Prediction{Token: gesture.TokenNone}, elapsed: time.Since(start), err: err}
	}

	pred := s.classify(gesture.ExtractFeatures(points))
	return frameResult{points: points, pred: pred, elapsed: time.Since(start)}
}

func (s *signSession) enqueueAudio(audioB64 string) {
	pcm, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		// An empty chunk flows through as an empty partial.
		s.logger.Printf("sign_ws: session %s sent invalid base64 audio: %v", s.id, err)
		pcm = nil
	}
	s.enqueue(workUnit{kind: "audio", pcm: pcm})
}

func (s *signSession) enqueueAudioFile(audioB64 string) {
	result := make(chan fileResult, 1)

	data, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		result <- fileResult{err: fmt.Errorf("invalid base64 audio: %w", err)}
	} else if !s.pool.Submit(func() { result <- s.transcribeFile(data) }) {
		result <- fileResult{err: fmt.Errorf("server shutting down")}
	}

	s.enqueue(workUnit{kind: "audio_file", file: result})
}

// transcribeFile runs on the pool. One-shot transcription uses a fresh
// decoder, so it never races the writer's streaming decoder.
func (s *signSession) transcribeFile(data []byte) fileResult {
	start := time.Now()

	pcm, err := s.normalizer.DecodeToPCM(s.ctx, data)
	if err != nil {
		if s.metrics != nil {
			s.metrics.DecodeErrors.Inc()
		}
		return fileResult{err: fmt.Errorf("decode audio: %w", err)}
	}

	res, err := s.speech.TranscribeWithWords(pcm)
	if err != nil {
		return fileResult{err: fmt.Errorf("transcribe: %w", err)}
	}
	return fileResult{res: res, elapsed: time.Since(start)}
}

func (s *signSession) enqueue(u workUnit) {
	select {
	case s.pending <- u:
	case <-s.ctx.Done():
	}
}

// writeLoop is the only goroutine that touches the stabilizer, the
// streaming decoder, and the outbound side of the connection.
func (s *signSession) writeLoop() {
	defer close(s.writerDone)
	defer s.cancel()

	for {
		select {
		case <-s.ctx.Done():
			return
		case u := <-s.pending:
			switch u.kind {
			case "frame":
				if !s.finishFrame(u) {
					return
				}
			case "audio":
				s.finishAudio(u)
			case "audio_file":
				if !s.finishFile(u) {
					return
				}
			}
		}
	}
}

func (s *signSession) finishFrame(u workUnit) bool {
	var res frameResult
	select {
	case res = <-u.frame:
	case <-s.ctx.Done():
		return false
	}

	if res.err != nil {
		s.logger.Printf("sign_ws: session %s frame failed: %v", s.id, res.err)
		if s.metrics != nil {
			s.metrics.FrameErrors.Inc()
		}
	}
	s.metrics.RecordFrame(len(res.points) > 0, res.elapsed.Seconds())

	obs := s.stabilizer.Observe(res.pred)

	points := res.points
	if points == nil {
		points = []landmark.Point{}
	}
	s.writeEvent(predictionEvent{
		Type:       "prediction",
		TS:         obs.TS,
		Token:      string(obs.Token),
		Confidence: obs.Confidence,
		StableMs:   obs.StableMs,
		Commit:     obs.Commit,
		Landmarks:  points,
	})

	if obs.Commit {
		s.recordCommit(obs)
	}
	return true
}

func (s *signSession) finishAudio(u workUnit) {
	if s.metrics != nil {
		s.metrics.AudioChunks.Inc()
	}

	res := s.speech.AcceptAudio(u.pcm)
	s.writeEvent(speechEvent{Type: "speech", Final: res.Final, Text: res.Text})

	if res.Final && res.Text != "" {
		if s.metrics != nil {
			s.metrics.SpeechFinals.Inc()
		}
		s.logger.Printf("sign_ws: session %s utterance: %s", s.id, res.Text)
		s.recordTranscript("stream", res.Text, nil)
		s.eventLog.LogAsync(s.id, eventlog.EventSpeechFinal, map[string]any{"text": res.Text})
	}
}

func (s *signSession) finishFile(u workUnit) bool {
	var res fileResult
	select {
	case res = <-u.file:
	case <-s.ctx.Done():
		return false
	}

	if res.err != nil {
		s.logger.Printf("sign_ws: session %s file transcription failed: %v", s.id, res.err)
		if s.metrics != nil {
			s.metrics.TranscriptionErrors.Inc()
		}
		s.eventLog.LogAsync(s.id, eventlog.EventDecodeError, map[string]any{"error": res.err.Error()})
		s.writeEvent(errorEvent{Type: "error", Request: "audio_file", Message: "audio decode failed"})
		return true
	}

	if s.metrics != nil {
		s.metrics.Transcriptions.Inc()
		s.metrics.TranscriptionDuration.Observe(res.elapsed.Seconds())
	}

	words := res.res.Words
	if words == nil {
		words = []speech.Word{}
	}
	s.writeEvent(transcriptEvent{Type: "audio_file_transcript", Text: res.res.Text, Words: words})

	s.recordTranscript("file", res.res.Text, res.res.Words)
	s.eventLog.LogAsync(s.id, eventlog.EventFileTranscribed, map[string]any{"text": res.res.Text})
	return true
}

func (s *signSession) recordCommit(obs gesture.Observation) {
	s.metrics.RecordCommit(string(obs.Token))
	s.logger.Printf("sign_ws: session %s committed %s (%.2f confidence, stable %dms)",
		s.id, obs.Token, obs.Confidence, obs.StableMs)

	if s.store.Enabled() {
		commit := store.Commit{
			Token:       string(obs.Token),
			Confidence:  obs.Confidence,
			StableMs:    obs.StableMs,
			CommittedAt: nowUTC(),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.store.InsertCommit(ctx, s.id, commit); err != nil {
				s.logger.Printf("sign_ws: failed to record commit for session %s: %v", s.id, err)
			}
		}()
	}
	s.eventLog.LogAsync(s.id, eventlog.EventTokenCommitted, map[string]any{
		"token":      string(obs.Token),
		"confidence": obs.Confidence,
		"stable_ms":  obs.StableMs,
	})

	if s.alertTokens[obs.Token] {
		go s.sendAlerts(obs)
	}
}

// sendAlerts fans an emergency keyword out to every registered caregiver.
func (s *signSession) sendAlerts(obs gesture.Observation) {
	alert := notifications.KeywordAlert{
		SessionID:  s.id,
		Token:      string(obs.Token),
		Confidence: obs.Confidence,
	}

	s.discord.NotifyKeywordAlert(context.Background(), alert)

	if s.apns != nil && s.store.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tokens, err := s.store.ListPushTokens(ctx)
		if err != nil {
			s.logger.Printf("sign_ws: failed to list push tokens: %v", err)
			return
		}
		for _, t := range tokens {
			if t.Platform != "ios" {
				continue
			}
			_ = s.apns.SendKeywordAlert(t.Token, alert)
		}
	}

	s.eventLog.LogAsync(s.id, eventlog.EventAlertSent, map[string]any{"token": string(obs.Token)})
}

func (s *signSession) recordTranscript(kind, text string, words []speech.Word) {
	if !s.store.Enabled() {
		return
	}
	transcript := store.Transcript{Kind: kind, Text: text, CreatedAt: nowUTC()}
	if len(words) > 0 {
		if data, err := json.Marshal(words); err == nil {
			transcript.WordsJSON = data
		}
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.InsertTranscript(ctx, s.id, transcript); err != nil {
			s.logger.Printf("sign_ws: failed to record transcript for session %s: %v", s.id, err)
		}
	}()
}

func (s *signSession) writeEvent(v any) {
	s.connMu.Lock()
	err := s.conn.WriteJSON(v)
	s.connMu.Unlock()
	if err != nil {
		s.logger.Printf("sign_ws: write failed for session %s: %v", s.id, err)
		s.cancel()
	}
}

func (s *signSession) cleanup() {
	s.cancel()
	<-s.writerDone

	// Writer has exited, safe to release decoder state.
	s.speech.Close()

	s.connMu.Lock()
	s.conn.Close()
	s.connMu.Unlock()

	if s.metrics != nil {
		s.metrics.ActiveSessions.Dec()
	}
	if s.store.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.store.EndSession(ctx, s.id, nowUTC())
	}
	s.eventLog.LogAsync(s.id, eventlog.EventSessionEnded, nil)

	s.logger.Printf("sign_ws: session %s cleaned up", s.id)
}
