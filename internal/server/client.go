package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	apperrors "github.com/landevice/lanmanager/internal/errors"
)

const (
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second
	maxMessage    = 256 * 1024
)

// Client is one WebSocket connection. Each client runs a readPump and a
// writePump goroutine; all outbound traffic goes through the send channel
// so only writePump touches the connection for writes.
type Client struct {
	conn       *websocket.Conn
	send       chan Message
	done       chan struct{}
	sendOnce   sync.Once
	server     *Server
	remoteAddr string

	mu            sync.Mutex
	authenticated bool

	// cmdLimiter throttles command requests per socket so one peer cannot
	// flood the executor.
	cmdLimiter *rate.Limiter
}

func newClient(s *Server, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		conn:       conn,
		send:       make(chan Message, channelBufferSize),
		done:       make(chan struct{}),
		server:     s,
		remoteAddr: remoteAddr,
		cmdLimiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// closeSend signals shutdown exactly once. Senders check done before
// sending, so the send channel itself is never closed.
func (c *Client) closeSend() {
	c.sendOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) setAuthenticated() {
	c.mu.Lock()
	c.authenticated = true
	c.mu.Unlock()
}

// canReceive reports whether broadcasts may be delivered to this socket.
// Unauthenticated sockets on a password-protected host receive nothing but
// direct auth replies.
func (c *Client) canReceive() bool {
	if !c.server.opts.Gate.RequiresAuth() {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// reply queues a message to this client only.
func (c *Client) reply(msg Message) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		log.Printf("server: client queue full, dropping %s", msg.Type)
	}
}

// writePump drains the send channel to the socket and keeps the connection
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("server: marshal outbound %s: %v", msg.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound messages until the socket closes, then tears
// the client down.
func (c *Client) readPump() {
	defer func() {
		c.server.unregister(c)
		c.closeSend()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure) {
				log.Printf("server: read error from %s: %v", c.remoteAddr, err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(NewErrorMessage("Invalid message format"))
			continue
		}

		switch msg.Type {
		case MessageTypePing:
			c.reply(newMessage(MessageTypePong, nil))
		case MessageTypeAuth:
			c.handleAuth(msg.Data)
		case MessageTypeCommandRequest:
			c.handleCommandRequest(msg.Data)
		default:
			c.reply(NewErrorMessage("Unknown message type"))
		}
	}
}

// handleAuth validates the supplied session token and flips the socket to
// authenticated. Hosts without a password accept any auth message.
func (c *Client) handleAuth(data json.RawMessage) {
	var payload AuthPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			c.reply(newMessage(MessageTypeAuthError, ErrorPayload{Message: "Invalid auth payload"}))
			return
		}
	}

	gate := c.server.opts.Gate
	if gate.RequiresAuth() && !gate.VerifyToken(payload.Token) {
		c.reply(newMessage(MessageTypeAuthError, ErrorPayload{Message: "Invalid token"}))
		return
	}

	c.setAuthenticated()
	c.reply(newMessage(MessageTypeAuthSuccess, nil))
}

// handleCommandRequest runs one command round-trip. Execution happens in a
// goroutine so a slow command never stalls the read loop.
func (c *Client) handleCommandRequest(data json.RawMessage) {
	var req CommandRequestPayload
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply(NewErrorMessage("Invalid command payload"))
		return
	}

	// The gate is never consulted for an unauthenticated socket.
	if !c.canReceive() {
		c.reply(NewErrorMessage("Not authenticated"))
		return
	}

	if !c.cmdLimiter.Allow() {
		c.reply(newMessage(MessageTypeCommandResponse, CommandResponsePayload{
			ID:      req.ID,
			Success: false,
			Output:  "Too many command requests",
		}))
		return
	}

	go func() {
		res, err := c.server.opts.Executor.Execute(context.Background(), req.Command, req.Args)

		resp := CommandResponsePayload{ID: req.ID}
		switch {
		case err != nil:
			resp.Output = apperrors.GetMessage(err)
		case res.Success:
			resp.Success = true
			resp.Output = res.Stdout
		default:
			resp.Output = res.Stderr
		}

		c.reply(newMessage(MessageTypeCommandResponse, resp))
	}()
}
