// internal/ws/client.go
package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tamzrod/servo-bridge/internal/controller"
)

const (
	readLimit    = 4 * 1024
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

type client struct {
	id   int64
	conn *websocket.Conn
	sink CommandSink

	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func newClient(id int64, conn *websocket.Conn, sink CommandSink) *client {
	return &client{
		id:     id,
		conn:   conn,
		sink:   sink,
		sendCh: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

// send queues a payload without ever blocking the caller (the tick
// broadcasts through here). A full channel means the client is not
// keeping up; dropping a status frame is harmless, the next one
// supersedes it.
func (c *client) send(payload []byte) {
	select {
	case c.sendCh <- payload:
	case <-c.done:
	default:
		log.Printf("ws: dropping frame to client %d (channel full)", c.id)
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: client %d read error: %v", c.id, err)
			}
			return
		}

		cmd, err := parseCommand(message, c.send)
		if err != nil {
			log.Printf("ws: client %d: %v", c.id, err)
			continue
		}
		c.sink.Submit(cmd)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// wireCommand is the console's message shape.
type wireCommand struct {
	Command string `json:"command"`
	Value   *int   `json:"value"`
}

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }

// parseCommand maps one console message to a controller command. reply
// answers the requesting client directly for commands that carry an
// individual response.
func parseCommand(data []byte, reply func([]byte)) (controller.Command, error) {
	var w wireCommand
	if err := json.Unmarshal(data, &w); err != nil {
		return controller.Command{}, &parseError{msg: "malformed command: " + err.Error()}
	}

	switch w.Command {
	case "setTorque":
		if w.Value == nil {
			return controller.Command{}, &parseError{msg: "setTorque requires a value"}
		}
		return controller.Command{Kind: controller.CmdSetTorque, Value: *w.Value, Reply: reply}, nil
	case "enableServo":
		return controller.Command{Kind: controller.CmdEnable}, nil
	case "disableServo":
		return controller.Command{Kind: controller.CmdDisable}, nil
	case "startHoming":
		return controller.Command{Kind: controller.CmdStartHoming, Reply: reply}, nil
	case "eStop":
		return controller.Command{Kind: controller.CmdEStop}, nil
	case "getStatus":
		return controller.Command{Kind: controller.CmdGetStatus, Reply: reply}, nil
	default:
		return controller.Command{}, &parseError{msg: "unknown command " + w.Command}
	}
}
