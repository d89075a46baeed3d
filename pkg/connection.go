package roomdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	clog "github.com/vilterp/roomdb/pkg/log"
)

type connectionID int

type connection struct {
	clientConn    *websocket.Conn
	id            connectionID
	database      *Database
	channels      map[int]*channel // live channels, keyed by statement id (aka channel id)
	nextChannelID int
	messages      chan *ChannelMessage
	context       context.Context

	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection(wsConn *websocket.Conn, db *Database, ID int) *connection {
	ctx := context.WithValue(db.ctx, clog.ConnIDKey, ID)
	conn := &connection{
		clientConn:    wsConn,
		id:            connectionID(ID),
		database:      db,
		channels:      make(map[int]*channel),
		nextChannelID: 0,
		messages:      make(chan *ChannelMessage),
		context:       ctx,
		closed:        make(chan struct{}),
	}
	go conn.writeMessagesToSocket()
	return conn
}

func (conn *connection) Ctx() context.Context {
	return conn.context
}

// owner identifies this connection's subscriptions.
func (conn *connection) owner() string {
	return fmt.Sprintf("conn-%d", conn.id)
}

func (conn *connection) close() {
	conn.closeOnce.Do(func() {
		close(conn.closed)
	})
}

func (conn *connection) writeMessagesToSocket() {
	for {
		select {
		case <-conn.closed:
			return
		case msg := <-conn.messages:
			writer, err := conn.clientConn.NextWriter(websocket.TextMessage)
			if err != nil {
				clog.Println(conn, "error writing to socket:", err)
				// Reads fail too once the socket is gone; that ends the connection.
				continue
			}
			if err := json.NewEncoder(writer).Encode(msg); err != nil {
				clog.Println(conn, "error writing msg to conn: encoding: ", err)
			}
			if err := writer.Close(); err != nil {
				clog.Println(conn, "error writing msg to conn: closing writer: ", err)
			}
		}
	}
}

func (conn *connection) handleStatements() {
	clog.Println(conn, "initiated from", conn.clientConn.RemoteAddr())
	for {
		_, message, readErr := conn.clientConn.ReadMessage()
		if readErr != nil {
			clog.Println(conn, "terminated:", readErr)
			conn.database.removeConn(conn)
			return
		}
		stringMessage := string(message)
		conn.addChannel(stringMessage)
	}
}

func (conn *connection) addChannel(statement string) {
	channel := newChannel(statement, conn.nextChannelID, conn)
	conn.nextChannelID++
	conn.channels[channel.id] = channel

	channel.handleStatement()
}

func (conn *connection) removeChannel(channel *channel) {
	delete(conn.channels, channel.id)
}

// send queues a message for the socket. It gives up once the connection is
// closed, so callbacks for a dead connection never block.
func (conn *connection) send(msg *ChannelMessage) bool {
	select {
	case conn.messages <- msg:
		return true
	case <-conn.closed:
		return false
	}
}
