package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/syncstore"
)

// conn is one websocket client of a collection.
type conn struct {
	ws     *websocket.Conn
	store  *syncstore.Store
	logger *slog.Logger

	// snapshots holds at most the latest unsent snapshot.
	snapshots chan []byte
	replies   chan []byte
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	st, err := s.store(collection)
	if err != nil {
		s.httpError(w, err)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade failed", "collection", collection, "error", err)
		return
	}
	defer ws.Close()

	c := &conn{
		ws:        ws,
		store:     st,
		logger:    s.logger.With("collection", collection, "remote", r.RemoteAddr),
		snapshots: make(chan []byte, 1),
		replies:   make(chan []byte, 16),
	}
	c.logger.Debug("live view connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	cancelListener := st.OnChange(func(ch syncstore.Change) {
		c.offer(snapshotFromChange(collection, ch))
	})
	defer cancelListener()
	c.offer(snapshotOf(st, ""))

	var pending sync.WaitGroup
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer cancel()
		c.readLoop(ctx, &pending)
	}()

	c.writeLoop(ctx, s.opts.PingInterval, s.opts.WriteTimeout)
	cancel()
	ws.Close()
	<-readDone
	pending.Wait()
	c.logger.Debug("live view disconnected")
}

// offer queues a snapshot without blocking, replacing any unsent one.
func (c *conn) offer(snap Snapshot) {
	msg, err := json.Marshal(snap)
	if err != nil {
		c.logger.Error("encode snapshot", "error", err)
		return
	}
	for {
		select {
		case c.snapshots <- msg:
			return
		default:
		}
		select {
		case <-c.snapshots:
		default:
		}
	}
}

// reply queues a reply; it gives up when the connection is gone.
func (c *conn) reply(ctx context.Context, r Reply) {
	msg, err := json.Marshal(r)
	if err != nil {
		c.logger.Error("encode reply", "error", err)
		return
	}
	select {
	case c.replies <- msg:
	case <-ctx.Done():
	}
}

// readLoop decodes commands until the connection fails. Each command runs
// on its own goroutine so a slow write does not hold up the next one.
func (c *conn) readLoop(ctx context.Context, pending *sync.WaitGroup) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.reply(ctx, Reply{Type: TypeError, Code: string(syncstore.CodeInvalidInput), Error: "invalid message: " + err.Error()})
			continue
		}
		pending.Add(1)
		go func() {
			defer pending.Done()
			c.reply(ctx, c.execute(ctx, cmd))
		}()
	}
}

func (c *conn) execute(ctx context.Context, cmd Command) Reply {
	id := cmd.ID
	var err error
	switch cmd.Type {
	case CmdUpdate:
		err = c.store.Update(ctx, cmd.ID, cmd.Fields)
	case CmdDelete:
		err = c.store.Delete(ctx, cmd.ID)
	case CmdMove:
		err = c.store.Move(ctx, cmd.ID, cmd.Status)
	case CmdReorder:
		err = c.store.Reorder(ctx, cmd.Status, cmd.IDs)
	case CmdCreate:
		fields := cmd.Fields
		if fields == nil {
			fields = doc.Object{}
		}
		id, err = c.store.Create(ctx, fields)
	default:
		return Reply{Type: TypeError, Ref: cmd.Ref, Code: string(syncstore.CodeInvalidInput), Error: "unknown command: " + cmd.Type}
	}
	if err != nil {
		return Reply{Type: TypeError, Ref: cmd.Ref, ID: id, Code: string(syncstore.CodeOf(err)), Error: err.Error()}
	}
	return Reply{Type: TypeAck, Ref: cmd.Ref, ID: id}
}

// writeLoop is the only writer of the connection.
func (c *conn) writeLoop(ctx context.Context, pingInterval, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	write := func(kind int, msg []byte) bool {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.ws.WriteMessage(kind, msg); err != nil {
			c.logger.Debug("websocket write failed", "error", err)
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		case msg := <-c.replies:
			if !write(websocket.TextMessage, msg) {
				return
			}
		case msg := <-c.snapshots:
			if !write(websocket.TextMessage, msg) {
				return
			}
		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}
