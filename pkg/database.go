package roomdb

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vilterp/roomdb/pkg/fact"
	clog "github.com/vilterp/roomdb/pkg/log"
)

// Database is the shared fact store plus its subscription registry. One lock
// guards both; it is never held while a subscription callback runs, since
// callbacks may call back into the database.
type Database struct {
	mu struct {
		sync.RWMutex

		facts         []*fact.Fact
		subscriptions []*Subscription
	}

	conns struct {
		sync.Mutex

		byID   map[connectionID]*connection
		nextID int
	}

	ctx     context.Context
	metrics *metrics
}

func NewDatabase() *Database {
	db := &Database{
		ctx: context.Background(),
	}
	db.conns.byID = make(map[connectionID]*connection)
	db.metrics = newMetrics(db)
	return db
}

func (db *Database) Ctx() context.Context {
	return db.ctx
}

// addConnection connects a websocket to the database, s.t. the database
// will interact with the connection. It blocks until the connection closes.
func (db *Database) addConnection(wsConn *websocket.Conn) {
	db.conns.Lock()
	conn := newConnection(wsConn, db, db.conns.nextID)
	db.conns.nextID++
	db.conns.byID[conn.id] = conn
	db.conns.Unlock()

	conn.handleStatements()
}

func (db *Database) removeConn(conn *connection) {
	db.conns.Lock()
	delete(db.conns.byID, conn.id)
	db.conns.Unlock()

	conn.close()
	if removed := db.RemoveByOwner(conn.owner()); removed > 0 {
		clog.Printf(conn, "removed %d subscriptions", removed)
	}
}

func (db *Database) numConnections() int {
	db.conns.Lock()
	defer db.conns.Unlock()
	return len(db.conns.byID)
}

// Close hangs up on every open connection.
func (db *Database) Close() error {
	db.conns.Lock()
	conns := make([]*connection, 0, len(db.conns.byID))
	for _, conn := range db.conns.byID {
		conns = append(conns, conn)
	}
	db.conns.Unlock()

	for _, conn := range conns {
		if err := conn.clientConn.Close(); err != nil {
			clog.Println(conn, "error closing:", err)
		}
	}
	return nil
}
