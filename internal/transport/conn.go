package transport

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	subscriberBuffer = 1024
	hubCapacity      = 512
	heartbeatPeriod  = 20 * time.Second
	pongWait         = 60 * time.Second
	outboundRateHz   = 200 // frames/sec ceiling, paces a slow/misbehaving client
)

// SessionHandle is the slice of session.Session a Conn needs, kept as an
// interface so this package never imports session (which would own the
// transport instead of the other way around).
type SessionHandle interface {
	RunInteraction(ctx context.Context, interactionID, userText string) error
	HandleUISubmit(mountID string, value any) error
	// HandleCallbackInvoke marshals args onto the interpreter's runtime and
	// invokes the named callback asynchronously; onError fires (off the
	// caller's goroutine) if the mount or callback name is unknown or the
	// callback returns an error.
	HandleCallbackInvoke(mountID, name string, args any, onError func(error))
}

// Conn is one websocket connection attached to a session. It is purely a
// transport-side adapter: reading inbound frames and relaying frames from
// its session's hub to the socket. It deliberately does not implement
// interaction.Outbound itself — that sink (hubOutbound) is bound to the
// session once, at creation, and outlives any single Conn across a
// reconnect. Conn owns the only goroutine that calls ws.WriteMessage;
// gorilla/websocket connections are not safe for concurrent writers.
type Conn struct {
	ws      *websocket.Conn
	sess    SessionHandle
	ob      *hubOutbound
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewConn wraps an upgraded websocket connection for sess, reading its
// outbound stream from ob's hub.
func NewConn(ws *websocket.Conn, sess SessionHandle, ob *hubOutbound, logger *zap.Logger) *Conn {
	return &Conn{
		ws:      ws,
		sess:    sess,
		ob:      ob,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(outboundRateHz), outboundRateHz),
	}
}

// Serve subscribes to this connection's hub from lastSeq, then runs the
// reader, writer, and heartbeat pumps until one of them exits, tearing the
// other two down. The first non-nil error from any pump ends the whole
// group, matching errgroup's first-error-cancels-the-group contract —
// exactly the semantics this connection's three independent pumps need,
// unlike C5's segment dispatch (see DESIGN.md).
func (c *Conn) Serve(ctx context.Context, lastSeq uint64) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.ws.SetReadLimit(1 << 20)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	subCh, subCancel := c.ob.hub.subscribeFrom(lastSeq, subscriberBuffer)
	defer subCancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readerPump(gctx) })
	g.Go(func() error { return c.writerPump(gctx, subCh) })
	g.Go(func() error { return c.heartbeatPump(gctx) })
	return g.Wait()
}

func (c *Conn) readerPump(ctx context.Context) error {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		c.handleInbound(ctx, raw)
	}
}

func (c *Conn) handleInbound(ctx context.Context, raw []byte) {
	env, code, err := decodeEnvelope(raw)
	if err != nil {
		c.logWarn(code, map[string]any{"error": err.Error()})
		return
	}

	switch env.Type {
	case TypeUserMessage:
		var p UserMessagePayload
		if err := unmarshalPayload(env.Payload, &p); err != nil {
			c.logWarn(ErrCodeInvalidEnvelope, map[string]any{"type": env.Type})
			return
		}
		interactionID := p.InteractionID
		if interactionID == "" {
			interactionID = newID()
		}
		go func() {
			if err := c.sess.RunInteraction(ctx, interactionID, p.Text); err != nil {
				c.logWarn("interaction_rejected", map[string]any{"interactionId": interactionID, "error": err.Error()})
			}
			c.ob.flushAssistantMessage(interactionID)
		}()

	case TypeUISubmit:
		var p UISubmitPayload
		if err := unmarshalPayload(env.Payload, &p); err != nil {
			c.logWarn(ErrCodeInvalidEnvelope, map[string]any{"type": env.Type})
			return
		}
		if err := c.sess.HandleUISubmit(p.MountID, p.Value); err != nil {
			c.logWarn(ErrCodeUnknownUISubmit, map[string]any{"mountId": p.MountID})
		}

	case TypeCallbackInvoke:
		var p CallbackInvokePayload
		if err := unmarshalPayload(env.Payload, &p); err != nil {
			c.logWarn(ErrCodeInvalidEnvelope, map[string]any{"type": env.Type})
			return
		}
		c.sess.HandleCallbackInvoke(p.MountID, p.Name, p.Args, func(err error) {
			c.logWarn(ErrCodeUnknownUISubmit, map[string]any{"mountId": p.MountID, "name": p.Name, "error": err.Error()})
		})

	case TypeClientLog:
		var p ClientLogPayload
		if err := unmarshalPayload(env.Payload, &p); err != nil {
			c.logWarn(ErrCodeInvalidEnvelope, map[string]any{"type": env.Type})
			return
		}
		if c.logger != nil {
			c.logger.Debug("client log", zap.String("lvl", p.Lvl), zap.String("msg", p.Msg))
		}

	default:
		c.logWarn(ErrCodeUnsupportedEnvelope, map[string]any{"type": env.Type})
	}
}

func (c *Conn) writerPump(ctx context.Context, subCh <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw := <-subCh:
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return err
			}
		}
	}
}

func (c *Conn) heartbeatPump(ctx context.Context) error {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return err
			}
		}
	}
}

func (c *Conn) logWarn(code string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn("transport rejected frame", zap.String("code", code), zap.Any("fields", fields))
}
