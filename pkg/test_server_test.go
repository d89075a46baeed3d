package roomdb

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vilterp/roomdb/pkg/util"
)

type testServerRef struct {
	db     *Database
	server *httptest.Server
	client *Client
}

func (tsr *testServerRef) Close() {
	tsr.client.Close()
	tsr.db.Close()
	tsr.server.Close()
}

func newTestServer(t *testing.T) *testServerRef {
	t.Helper()
	db := NewDatabase()
	server := httptest.NewServer(newHandler(db))

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	client, err := NewClient(url)
	if err != nil {
		server.Close()
		t.Fatal(err)
	}
	return &testServerRef{
		db:     db,
		server: server,
		client: client,
	}
}

// define stmt => define error or ack
// define query => define error or results
type simpleTestStmt struct {
	stmt  string
	query string

	ack     string
	error   string
	results string
}

// runSimpleTestScript spins up a test server and runs statements on it,
// checking each result. It doesn't support live queries; only initial results
// are checked.
func runSimpleTestScript(t *testing.T, cases []simpleTestStmt) *testServerRef {
	tsr := newTestServer(t)

	for idx, testCase := range cases {
		// Run a statement.
		if testCase.stmt != "" {
			result, err := tsr.client.Exec(testCase.stmt)
			if util.AssertError(t, idx, testCase.error, err) {
				continue
			}
			if result != testCase.ack {
				t.Fatalf(`case %d: expected ack "%s"; got "%s"`, idx, testCase.ack, result)
			}
			continue
		}
		// Run a query.
		if testCase.query != "" {
			res, err := tsr.client.Query(testCase.query)
			if util.AssertError(t, idx, testCase.error, err) {
				continue
			}
			if res == nil {
				res = []Result{}
			}
			util.AssertJSON(t, idx, testCase.results, res)
		}
	}

	return tsr
}
