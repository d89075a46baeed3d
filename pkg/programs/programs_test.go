package programs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	roomdb "github.com/vilterp/roomdb/pkg"
)

const greeter = `
claim("hello world")

def on_red(results):
    retract("#%d sees %%" % me)
    for r in results:
        claim("sees " + r["x"])

when("$x is red", on_red)
`

const boot = `claim("booted")`

func writeScript(t *testing.T, dir, name, code string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(code), 0644))
	return path
}

func newTestManager(t *testing.T, scripts map[string]string) (*roomdb.Database, *Manager) {
	t.Helper()
	dir := t.TempDir()
	for name, code := range scripts {
		writeScript(t, dir, name, code)
	}
	db := roomdb.NewDatabase()
	m := NewManager(db, Config{Dir: dir, BootID: 0, SourceID: "00"})
	require.NoError(t, m.Load())
	return db, m
}

func factStrings(db *roomdb.Database) []string {
	var out []string
	for _, f := range db.Facts() {
		out = append(out, f.String())
	}
	return out
}

func TestProgramID(t *testing.T) {
	cases := []struct {
		path string
		id   int
		ok   bool
	}{
		{"5.star", 5, true},
		{"scripts/12__clock.star", 12, true},
		{"007__bond__spy.star", 7, true},
		{"5.lua", 0, false},
		{"clock.star", 0, false},
		{"5clock.star", 0, false},
		{"5.star.swp", 0, false},
	}
	for idx, testCase := range cases {
		id, ok := ProgramID(testCase.path)
		require.Equal(t, testCase.ok, ok, "case %d", idx)
		require.Equal(t, testCase.id, id, "case %d", idx)
	}
}

func TestLoadClaimsSource(t *testing.T) {
	db, m := newTestManager(t, map[string]string{
		"0.star":          boot,
		"5__greeter.star": greeter,
		"notes.txt":       "not a program",
	})
	require.Equal(t, []int{0, 5}, m.Sources())

	envs := db.Select([]string{"#00 5 source code $src"})
	require.Len(t, envs, 1)
	require.Equal(t, greeter, envs[0].Get("src"))

	// Loading again replaces rather than duplicates.
	require.NoError(t, m.Load())
	require.Len(t, db.Select([]string{"#00 $id source code $"}), 2)
}

func TestSync(t *testing.T) {
	db, m := newTestManager(t, map[string]string{
		"0.star":          boot,
		"5__greeter.star": greeter,
	})
	db.ClaimString("fox is red")
	ctx := context.Background()

	m.Sync(ctx, []int{5})
	require.Equal(t, []int{0, 5}, m.Running())
	require.Subset(t, factStrings(db), []string{"#0 booted", "#5 hello world"})
	require.Equal(t, 1, db.NumSubscriptions())

	require.NoError(t, db.EvaluateSubscriptions(ctx))
	require.NoError(t, db.EvaluateSubscriptions(ctx))
	require.Len(t, db.Select([]string{"#5 sees fox"}), 1)

	// Running programs aren't restarted.
	m.Sync(ctx, []int{5})
	require.Len(t, db.Select([]string{"#5 hello world"}), 1)

	// Unseen programs stop; the boot program stays; unknown ids are skipped.
	m.Sync(ctx, []int{7})
	require.Equal(t, []int{0}, m.Running())
	require.Empty(t, db.Select([]string{"#5 %"}))
	require.Equal(t, 0, db.NumSubscriptions())
	require.Contains(t, factStrings(db), "#0 booted")
}

func TestRunUnknownProgram(t *testing.T) {
	_, m := newTestManager(t, nil)
	err := m.Run(context.Background(), 3)
	require.Error(t, err)
	_, ok := err.(*noSuchProgram)
	require.True(t, ok)
}

func TestRunFailureCleansUp(t *testing.T) {
	db, m := newTestManager(t, map[string]string{
		"4.star": "claim(\"partial\")\nwhen(\"$x\", lambda r: None)\n{}[\"missing\"]\n",
	})
	err := m.Run(context.Background(), 4)
	require.Error(t, err)
	require.Empty(t, m.Running())
	require.Empty(t, db.Select([]string{"#4 %"}))
	require.Equal(t, 0, db.NumSubscriptions())
}

func TestCallbackErrorIsReported(t *testing.T) {
	db, m := newTestManager(t, map[string]string{
		"2.star": "def cb(results):\n    return results[5]\nwhen([\"$x is red\"], cb)\n",
	})
	db.ClaimString("fox is red")
	require.NoError(t, m.Run(context.Background(), 2))

	err := db.EvaluateSubscriptions(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "program 2")
}

func TestDraw(t *testing.T) {
	db, m := newTestManager(t, map[string]string{
		"3.star": `
ill = illumination()
ill.text(text="hello there", x=5)
ill.rectangle({"w": 20})
draw(ill)
draw(ill)
`,
	})
	ctx := context.Background()
	require.NoError(t, m.Run(ctx, 3))

	drawings := db.Drawings(ctx)
	require.Len(t, drawings, 1)
	require.Equal(t, "#3", drawings[0].Owner)
	require.Len(t, drawings[0].Graphics, 2)
	require.Equal(t, "text", drawings[0].Graphics[0].Type)
	require.Equal(t, "rectangle", drawings[0].Graphics[1].Type)
}

func TestReloadAndUnload(t *testing.T) {
	db, m := newTestManager(t, map[string]string{"6.star": `claim("v1")`})
	ctx := context.Background()
	require.NoError(t, m.Run(ctx, 6))
	require.Contains(t, factStrings(db), "#6 v1")

	path := writeScript(t, m.cfg.Dir, "6.star", `claim("v2")`)
	require.NoError(t, m.Reload(ctx, path))
	require.Equal(t, []int{6}, m.Running())
	require.Contains(t, factStrings(db), "#6 v2")
	require.NotContains(t, factStrings(db), "#6 v1")

	m.Unload(path)
	require.Empty(t, m.Running())
	require.Empty(t, m.Sources())
	require.Empty(t, db.Select([]string{"#6 %"}))
	require.Empty(t, db.Select([]string{"#00 6 source code $"}))
}

func TestWatch(t *testing.T) {
	_, m := newTestManager(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.Watch(ctx, ready)
	}()
	<-ready

	writeScript(t, m.cfg.Dir, "9__new.star", `claim("hi")`)
	require.Eventually(t, func() bool {
		sources := m.Sources()
		return len(sources) == 1 && sources[0] == 9
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
