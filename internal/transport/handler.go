package transport

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fenced-run/agentrt/internal/interaction"
	"github.com/fenced-run/agentrt/internal/mount"
	"github.com/fenced-run/agentrt/internal/reactive"
	"github.com/fenced-run/agentrt/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// reconnectGrace is how long a session's hub and backing resources are kept
// alive after its last connection drops before the session itself is torn
// down. Spec's base data model says a session is "torn down on disconnect";
// this grace window is SPEC_FULL §12's supplemented resumable-streaming
// exception to that, bounded so an abandoned session still doesn't leak.
const reconnectGrace = 30 * time.Second

// Handler owns the one websocket endpoint through which every session's
// full-duplex channel is opened (spec §6), plus the per-session hub that
// outlives any one connection long enough to support a reconnect.
type Handler struct {
	sessions *session.Manager
	logger   *zap.Logger

	newSessionParams func() session.NewSessionParams

	mu     sync.Mutex
	outs   map[string]*hubOutbound
	timers map[string]*time.Timer
}

// NewHandler builds a Handler. newSessionParams is invoked once per new
// connection to produce the ChatClient/system prompt/skill globals/turn
// policy a fresh session should be wired with — a func rather than a fixed
// value since config (provider, skills) can be reloaded between connects.
func NewHandler(sessions *session.Manager, logger *zap.Logger, newSessionParams func() session.NewSessionParams) *Handler {
	return &Handler{
		sessions:         sessions,
		logger:           logger,
		newSessionParams: newSessionParams,
		outs:             make(map[string]*hubOutbound),
		timers:           make(map[string]*time.Timer),
	}
}

// RegisterRoutes registers the websocket endpoint on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/session/ws", h.handleWS)
}

// handleWS upgrades the request and attaches it to a session: a fresh one
// for a bare connect, or an existing still-within-grace one when
// session_id/last_seq name a resumption point.
func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	resumeID := r.URL.Query().Get("session_id")
	var lastSeq uint64
	if s := r.URL.Query().Get("last_seq"); s != "" {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			lastSeq = n
		}
	}

	sess, ob, resumed := h.attach(resumeID)
	if sess == nil {
		params := h.newSessionParams()
		newSess, newOb := h.createSession(params)
		sess, ob = newSess, newOb
	}

	conn := NewConn(ws, sess, ob, h.logger)

	ob.hub.pushEnvelope(TypeSession, SessionPayload{
		ID:            sess.ID,
		CreatedAt:     sess.CreatedAt.Format(time.RFC3339),
		SchemaVersion: "1",
	})

	replayFrom := uint64(0)
	if resumed {
		replayFrom = lastSeq
	}

	serveErr := conn.Serve(r.Context(), replayFrom)
	if serveErr != nil && h.logger != nil {
		h.logger.Info("session connection closed", zap.String("session_id", sess.ID), zap.Error(serveErr))
	}

	h.scheduleTeardown(sess.ID)
}

// attach looks up an existing session+outbound pair for resumeID, canceling
// its pending teardown timer if found.
func (h *Handler) attach(resumeID string) (*session.Session, *hubOutbound, bool) {
	if resumeID == "" {
		return nil, nil, false
	}
	sess, err := h.sessions.Get(resumeID)
	if err != nil {
		return nil, nil, false
	}
	h.mu.Lock()
	ob, ok := h.outs[resumeID]
	if t, ok2 := h.timers[resumeID]; ok2 {
		t.Stop()
		delete(h.timers, resumeID)
	}
	h.mu.Unlock()
	if !ok {
		return nil, nil, false
	}
	return sess, ob, true
}

// createSession wires a brand-new session and its hubOutbound together,
// registering the mount payload/patch hooks straight onto the hub (mounts
// outlive any one interaction, so they are not routed through
// interaction.Outbound).
func (h *Handler) createSession(params session.NewSessionParams) (*session.Session, *hubOutbound) {
	hb := newHub(hubCapacity)
	ob := newHubOutbound(hb)

	params.OnMountPayload = func(p mount.Payload) {
		mp := MountPayload{
			MountID:        p.MountID,
			UISource:       p.UISource,
			StreamedDataID: p.StreamedDataID,
			OutputSchema:   p.OutputSchema,
			CallbackNames:  p.CallbackNames,
		}
		if p.HasInitialData {
			mp.InitialData = p.InitialData
		}
		hb.pushEnvelope(TypeMount, mp)
	}
	params.OnMountPatch = func(mountID string, patches []reactive.Patch) {
		entries := make([]patchEntry, 0, len(patches))
		for _, p := range patches {
			entries = append(entries, patchEntry{string(p.Op), p.Path, p.Value, p.Prev})
		}
		hb.pushEnvelope(TypeDataPatch, DataPatchPayload{MountID: mountID, Patches: entries})
	}
	params.Outbound = ob

	sess := h.sessions.CreateSession(params)

	h.mu.Lock()
	h.outs[sess.ID] = ob
	h.mu.Unlock()

	return sess, ob
}

// scheduleTeardown starts (or restarts) the grace timer that tears a
// session down if no reconnect claims it in time.
func (h *Handler) scheduleTeardown(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.timers[sessionID]; ok {
		t.Stop()
	}
	h.timers[sessionID] = time.AfterFunc(reconnectGrace, func() {
		h.mu.Lock()
		delete(h.outs, sessionID)
		delete(h.timers, sessionID)
		h.mu.Unlock()
		h.sessions.Close(sessionID)
	})
}

var _ interaction.Outbound = (*hubOutbound)(nil)
