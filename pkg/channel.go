package roomdb

import (
	"context"
	"fmt"

	clog "github.com/vilterp/roomdb/pkg/log"
	"github.com/vilterp/roomdb/pkg/parse"
)

type channel struct {
	connection   *connection
	rawStatement string
	id           int // unique with containing connection

	context context.Context
}

func (channel *channel) Ctx() context.Context {
	return channel.context
}

func newChannel(rawStatement string, ID int, conn *connection) *channel {
	ctx := context.WithValue(conn.Ctx(), clog.ChannelIDKey, ID)
	channel := &channel{
		connection:   conn,
		rawStatement: rawStatement,
		id:           ID,
		context:      ctx,
	}
	return channel
}

func (channel *channel) handleStatement() {
	done, err := channel.validateAndRun()
	if err != nil {
		clog.Println(channel, err.Error())
		channel.writeErrorMessage(err)
	}
	// Remove this channel if we're done.
	if done {
		channel.connection.removeChannel(channel)
	}
}

// validateAndRun returns an error if there was one, and a boolean
// representing whether this statement is done (i.e. whether a subscription
// is still pushing to this channel)
func (channel *channel) validateAndRun() (bool, error) {
	// Parse what was sent to us.
	statement, err := parse.Parse(channel.rawStatement)
	if err != nil {
		return true, &parseError{error: err}
	}

	// Validate statement.
	if err := validateStatement(statement); err != nil {
		return true, &validationError{error: err}
	}
	return channel.run(statement)
}

func validateStatement(statement *parse.Statement) error {
	got := len(statement.Clauses)
	switch statement.Verb() {
	case parse.Claim, parse.Retract:
		if got != 1 {
			return &wrongNumClauses{Verb: string(statement.Verb()), Wanted: "exactly 1", Got: got}
		}
	case parse.Select, parse.When:
		if got == 0 {
			return &wrongNumClauses{Verb: string(statement.Verb()), Wanted: "at least 1", Got: got}
		}
	case parse.Evaluate, parse.Facts:
		if got != 0 {
			return &wrongNumClauses{Verb: string(statement.Verb()), Wanted: "no", Got: got}
		}
	default:
		return &unknownVerb{Verb: statement.RawVerb}
	}
	return nil
}

// run runs the statement, returning an error if there was one
// and a boolean indicating whether the statement is "done"
// (only false for WHEN)
func (channel *channel) run(statement *parse.Statement) (bool, error) {
	db := channel.connection.database
	parts := statement.QueryParts()
	switch statement.Verb() {
	case parse.Claim:
		db.ClaimString(parts[0])
		channel.writeAckMessage("CLAIM 1")
		return true, nil

	case parse.Retract:
		removed := db.Retract(parts[0])
		channel.writeAckMessage(fmt.Sprintf("RETRACT %d", removed))
		return true, nil

	case parse.Select:
		channel.writeInitialResult(&InitialResult{Results: db.SelectResults(parts)})
		return true, nil

	case parse.When:
		// Updates wait until the initial result is on the wire.
		initialSent := make(chan struct{})
		subID, initial := db.WhenSelect(channel.connection.owner(), parts, CallbackFunc(
			func(_ context.Context, results []Result) error {
				select {
				case <-initialSent:
				case <-channel.connection.closed:
					return nil
				}
				// Dropped silently once the connection closes; its
				// subscriptions are removed right after.
				channel.writeSubscriptionUpdate(&SubscriptionUpdate{Results: results})
				return nil
			},
		))
		channel.writeInitialResult(&InitialResult{Results: initial})
		close(initialSent)
		clog.Printf(channel, "subscribed %s: %v", subID, parts)
		return false, nil

	case parse.Evaluate:
		if err := db.EvaluateSubscriptions(channel.Ctx()); err != nil {
			clog.Printf(channel, "evaluation had failures: %v", err)
		}
		channel.writeAckMessage("EVALUATE")
		return true, nil

	case parse.Facts:
		facts := db.Facts()
		texts := make([]string, len(facts))
		for idx, f := range facts {
			texts[idx] = f.String()
		}
		channel.writeInitialResult(&InitialResult{Facts: texts})
		return true, nil
	}
	panic(fmt.Sprintf("unknown statement type %v", statement.RawVerb))
}

type ChannelMessage struct {
	StatementID int
	Message     *MessageToClient
}

type MessageToClientType int

const (
	ErrorMessage MessageToClientType = iota
	AckMessage
	InitialResultMessage
	SubscriptionUpdateMessage
)

func (m MessageToClientType) String() string {
	switch m {
	case ErrorMessage:
		return "error"
	case AckMessage:
		return "ack"
	case InitialResultMessage:
		return "initial_result"
	case SubscriptionUpdateMessage:
		return "subscription_update"
	}
	panic(fmt.Errorf("unknown type %d", int(m)))
}

func (m MessageToClientType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MessageToClientType) UnmarshalText(text []byte) error {
	textStr := string(text)
	switch textStr {
	case "error":
		*m = ErrorMessage
	case "ack":
		*m = AckMessage
	case "initial_result":
		*m = InitialResultMessage
	case "subscription_update":
		*m = SubscriptionUpdateMessage
	default:
		return fmt.Errorf("unknown message type %q", textStr)
	}
	return nil
}

type MessageToClient struct {
	Type         MessageToClientType `json:"type"`
	ErrorMessage *string             `json:"error,omitempty"`
	AckMessage   *string             `json:"ack,omitempty"`
	// data
	InitialResultMessage      *InitialResult      `json:"initial_result,omitempty"`
	SubscriptionUpdateMessage *SubscriptionUpdate `json:"subscription_update,omitempty"`
}

// InitialResult answers SELECT and WHEN (Results) or FACTS (Facts).
type InitialResult struct {
	Results []Result `json:"results,omitempty"`
	Facts   []string `json:"facts,omitempty"`
}

// SubscriptionUpdate carries a WHEN's results after an evaluation pass. The
// statement id of the enclosing message says which WHEN it belongs to.
type SubscriptionUpdate struct {
	Results []Result `json:"results"`
}

func (channel *channel) writeErrorMessage(err error) {
	errStr := err.Error()
	channel.writeMessage(&MessageToClient{
		Type:         ErrorMessage,
		ErrorMessage: &errStr,
	})
}

func (channel *channel) writeAckMessage(message string) {
	channel.writeMessage(&MessageToClient{
		Type:       AckMessage,
		AckMessage: &message,
	})
}

func (channel *channel) writeInitialResult(result *InitialResult) {
	channel.writeMessage(&MessageToClient{
		Type:                 InitialResultMessage,
		InitialResultMessage: result,
	})
}

func (channel *channel) writeSubscriptionUpdate(update *SubscriptionUpdate) {
	if update.Results == nil {
		update.Results = []Result{}
	}
	channel.writeMessage(&MessageToClient{
		Type:                      SubscriptionUpdateMessage,
		SubscriptionUpdateMessage: update,
	})
}

func (channel *channel) writeMessage(message *MessageToClient) {
	channel.connection.send(&ChannelMessage{
		StatementID: channel.id,
		Message:     message,
	})
}
