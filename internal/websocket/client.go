package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"time"

	"github.com/a-h/templ"
	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/johndosdos/friendlychat/components/chat"
	"github.com/johndosdos/friendlychat/internal/feed"
	"github.com/johndosdos/friendlychat/internal/model"
	"github.com/johndosdos/friendlychat/internal/session"
	"github.com/johndosdos/friendlychat/internal/submission"
)

// Client connects one chat session to its websocket.
type Client struct {
	Session *session.Session
	conn    *websocket.Conn
	hub     *Hub
	cancel  context.CancelFunc
}

func NewClient(conn *websocket.Conn, sess *session.Session, hub *Hub) *Client {
	return &Client{
		Session: sess,
		conn:    conn,
		hub:     hub,
		cancel:  func() {},
	}
}

func (c *Client) Key() string { return c.Session.ID }

func (c *Client) UserID() uuid.UUID { return c.Session.UserID() }

func (c *Client) Deliver(batch model.ChangeBatch) bool { return c.Session.Deliver(batch) }

func (c *Client) SetUser(user *model.SessionUser) bool { return c.Session.SetUser(user) }

// Kick disconnects the page.
func (c *Client) Kick() { c.cancel() }

func (c *Client) SubmitImage(ctx context.Context, f submission.Upload) error {
	return c.Session.SubmitImage(ctx, f)
}

// Serve runs the session and both halves of the connection. It returns
// once the page goes away or the hub drops it.
func (c *Client) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer cancel()

	go c.Session.Run(ctx)

	reg := Registration{Member: c, Done: make(chan struct{})}
	select {
	case c.hub.Register <- reg:
		<-reg.Done
	case <-ctx.Done():
		return
	}

	go c.ReadMessage(ctx)
	c.WriteMessage(ctx)

	select {
	case c.hub.Unregister <- c:
	case <-time.After(5 * time.Second):
	}
}

// clientMessage is what htmx's ws-send posts: the form values plus a
// HEADERS object we ignore.
type clientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ReadMessage reads the incoming data from the websocket stream.
func (c *Client) ReadMessage(ctx context.Context) {
	defer c.cancel()

	for {
		msgType, p, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != -1 {
				log.Printf("%v", err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(p, &msg); err != nil {
			log.Printf("failed to process payload from client: %v", err)
			continue
		}

		switch msg.Type {
		case "draft":
			err = c.Session.Draft(ctx, msg.Content)
		case "message":
			err = c.Session.SubmitText(ctx, msg.Content)
		default:
			slog.WarnContext(ctx, "unknown client message", "type", msg.Type)
			continue
		}
		if err != nil {
			return
		}
	}
}

// WriteMessage renders session updates to the outgoing websocket stream
// until the session closes its update channel.
func (c *Client) WriteMessage(ctx context.Context) {
	c.write(ctx, chat.SessionID(c.Session.ID))

	for u := range c.Session.Updates() {
		content := Render(u)
		if content == nil {
			continue
		}
		if err := c.write(ctx, content); err != nil && ctx.Err() == nil {
			slog.WarnContext(ctx, "failed to write update",
				"error", err,
				"session_id", c.Session.ID,
				"kind", u.Kind.String())
			c.cancel()
		}
	}

	c.conn.Close(websocket.StatusNormalClosure, "session closed")
}

func (c *Client) write(ctx context.Context, content templ.Component) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var buf bytes.Buffer
	if err := content.Render(ctx, &buf); err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, buf.Bytes())
}

// Render maps an update to the fragment that applies it to the page.
func Render(u session.Update) templ.Component {
	switch u.Kind {
	case session.UpdateFeed:
		switch u.Feed.Op {
		case feed.OpInsert:
			return chat.Insert(u.Feed.Node, u.Feed.Before)
		case feed.OpReplace:
			return chat.Replace(u.Feed.Node)
		case feed.OpRemove:
			return chat.Remove(u.Feed.ID)
		}
	case session.UpdateIdentity:
		return chat.Identity(u.User)
	case session.UpdateSendButton:
		return chat.SendButton(u.CanSend)
	case session.UpdateCharCounter:
		return chat.CharCounter(u.Length, session.MaxDraftLength)
	case session.UpdateNotice:
		if u.Notice != nil {
			return chat.Notice(u.Notice)
		}
	case session.UpdateClearDraft:
		return chat.ClearDraft()
	case session.UpdatePushToken:
		return chat.PushTokenRequest()
	}
	return nil
}
