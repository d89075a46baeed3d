package roomdb

// this should pretty much be the same API the renderer's JS client uses

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
	clog "github.com/vilterp/roomdb/pkg/log"
)

// updatesBuffer is how many messages a channel holds. Messages arriving at a
// full channel are dropped so one slow reader can't stall the others.
const updatesBuffer = 128

type Client struct {
	WebSocketConn    *websocket.Conn
	URL              string
	NextStatementID  int
	StatementsToSend chan *StatementRequest
	IncomingMessages chan *ChannelMessage
	Channels         map[int]*ClientChannel

	// ServerClosed is closed once the socket can no longer be read.
	ServerClosed chan struct{}
}

type StatementRequest struct {
	Statement  string
	ResultChan chan *ClientChannel
}

func NewClient(url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	clientConn := &Client{
		NextStatementID:  0,
		WebSocketConn:    conn,
		URL:              url,
		StatementsToSend: make(chan *StatementRequest),
		IncomingMessages: make(chan *ChannelMessage),
		Channels:         map[int]*ClientChannel{},
		ServerClosed:     make(chan struct{}),
	}
	go clientConn.handleStatements()
	go clientConn.handleIncoming()
	return clientConn, nil
}

func (conn *Client) Ctx() context.Context {
	return context.Background()
}

func (conn *Client) Close() error {
	return conn.WebSocketConn.Close()
}

func (conn *Client) handleStatements() {
	for {
		select {
		case <-conn.ServerClosed:
			for _, channel := range conn.Channels {
				close(channel.Updates)
			}
			return

		case request := <-conn.StatementsToSend:
			channel := &ClientChannel{
				Conn:        conn,
				StatementID: conn.NextStatementID,
				Statement:   request.Statement,
				Updates:     make(chan *MessageToClient, updatesBuffer),
			}
			conn.NextStatementID++
			conn.Channels[channel.StatementID] = channel
			if err := conn.WebSocketConn.WriteMessage(websocket.TextMessage, []byte(request.Statement)); err != nil {
				clog.Println(conn, "error sending statement:", err)
			}
			request.ResultChan <- channel

		case incomingMsg := <-conn.IncomingMessages:
			channel, ok := conn.Channels[incomingMsg.StatementID]
			if !ok {
				clog.Printf(conn, "message for unknown statement %d", incomingMsg.StatementID)
				continue
			}
			select {
			case channel.Updates <- incomingMsg.Message:
			default:
				clog.Printf(conn, "statement %d: updates full; dropping message", incomingMsg.StatementID)
			}
		}
	}
}

func (conn *Client) handleIncoming() {
	defer close(conn.ServerClosed)
	defer conn.WebSocketConn.Close()
	for {
		parsedMessage := &ChannelMessage{}
		if err := conn.WebSocketConn.ReadJSON(parsedMessage); err != nil {
			clog.Println(conn, "client read loop done:", err)
			return
		}
		select {
		case conn.IncomingMessages <- parsedMessage:
		case <-conn.ServerClosed:
			return
		}
	}
}

type ClientChannel struct {
	Conn        *Client
	StatementID int
	Statement   string
	// Updates is closed when the connection goes away. If it is left
	// undrained, messages past updatesBuffer are dropped.
	Updates chan *MessageToClient
}

var errServerClosed = errors.New("connection closed")

// Statement sends a statement and returns the channel its responses arrive on.
func (conn *Client) Statement(statement string) (*ClientChannel, error) {
	resultChan := make(chan *ClientChannel, 1)
	select {
	case conn.StatementsToSend <- &StatementRequest{
		ResultChan: resultChan,
		Statement:  statement,
	}:
	case <-conn.ServerClosed:
		return nil, errServerClosed
	}
	return <-resultChan, nil
}

func (conn *Client) firstMessage(statement string) (*ClientChannel, *MessageToClient, error) {
	channel, err := conn.Statement(statement)
	if err != nil {
		return nil, nil, err
	}
	update, ok := <-channel.Updates
	if !ok {
		return nil, nil, errServerClosed
	}
	if update.ErrorMessage != nil {
		return nil, nil, errors.New(*update.ErrorMessage)
	}
	return channel, update, nil
}

// LiveQuery sends a WHEN and returns its current results. Later results
// arrive on the channel's Updates.
func (conn *Client) LiveQuery(query string) ([]Result, *ClientChannel, error) {
	channel, update, err := conn.firstMessage(query)
	if err != nil {
		return nil, nil, err
	}
	if update.InitialResultMessage != nil {
		return update.InitialResultMessage.Results, channel, nil
	}
	return nil, nil, errors.New("query result neither error nor initial result")
}

func (conn *Client) Query(query string) ([]Result, error) {
	_, update, err := conn.firstMessage(query)
	if err != nil {
		return nil, err
	}
	if update.InitialResultMessage != nil {
		return update.InitialResultMessage.Results, nil
	}
	return nil, errors.New("query result neither error nor initial result")
}

// Facts returns the server's store as fact text, in store order.
func (conn *Client) Facts() ([]string, error) {
	_, update, err := conn.firstMessage("FACTS")
	if err != nil {
		return nil, err
	}
	if update.InitialResultMessage != nil {
		return update.InitialResultMessage.Facts, nil
	}
	return nil, errors.New("facts result neither error nor initial result")
}

func (conn *Client) Exec(statement string) (string, error) {
	_, update, err := conn.firstMessage(statement)
	if err != nil {
		return "", err
	}
	if update.AckMessage != nil {
		return *update.AckMessage, nil
	}
	return "", errors.New("exec result neither error nor ack")
}
