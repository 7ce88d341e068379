package bridge

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/famish99/pianodctl/internal/pianod"
)

const eventWriteTimeout = 5 * time.Second

// EventFrame is one notification on the /events stream.
type EventFrame struct {
	Type  string   `json:"type"`
	State string   `json:"state"`
	Song  SongView `json:"song"`
	At    int64    `json:"at"`
}

// NewEventFrame converts a notification for the wire.
func NewEventFrame(n pianod.Notification, at time.Time) EventFrame {
	return EventFrame{
		Type:  n.Kind.String(),
		State: n.State.String(),
		Song:  NewSongView(n.Song),
		At:    at.Unix(),
	}
}

// rawWriter returns the net/http writer under gin's. gin refuses to hijack
// once the header is written, and the websocket handshake writes it first.
func rawWriter(c *gin.Context) http.ResponseWriter {
	if u, ok := c.Writer.(interface{ Unwrap() http.ResponseWriter }); ok {
		return u.Unwrap()
	}
	return c.Writer
}

// Events streams session notifications over a websocket until the client
// goes away.
func (a *API) Events(c *gin.Context) {
	// Subscribe before the upgrade so nothing raised after the client
	// sees the handshake is missed.
	sub := a.hub.subscribe()
	defer a.hub.unsubscribe(sub)

	conn, err := websocket.Accept(rawWriter(c), c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[API] websocket accept failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Nothing is read from the client; CloseRead handles its control frames.
	ctx := conn.CloseRead(c.Request.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-sub.notify:
			data, err := json.Marshal(NewEventFrame(n, time.Now()))
			if err != nil {
				log.Printf("[API] failed to encode %s: %v", n.Kind, err)
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Printf("[API] event stream closed: %v", err)
				return
			}
		}
	}
}
