// Package programs hosts the Starlark programs that live on the table. Each
// program is a script in the scripts dir; it runs while its marker is seen
// and talks to the database through claim, retract and when.
package programs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	roomdb "github.com/vilterp/roomdb/pkg"
	clog "github.com/vilterp/roomdb/pkg/log"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

type Config struct {
	// Dir holds the scripts.
	Dir string
	// BootID is the program that runs whether or not its marker is seen.
	BootID int
	// SourceID tags the source code facts.
	SourceID string
}

type Manager struct {
	db  *roomdb.Database
	cfg Config
	ctx context.Context

	mu struct {
		sync.Mutex

		sources map[int]*source
		running map[int]*program
	}
}

var _ roomdb.ProgramSyncer = &Manager{}

func NewManager(db *roomdb.Database, cfg Config) *Manager {
	m := &Manager{
		db:  db,
		cfg: cfg,
		ctx: db.Ctx(),
	}
	m.mu.sources = map[int]*source{}
	m.mu.running = map[int]*program{}
	return m
}

func (m *Manager) Ctx() context.Context {
	return m.ctx
}

// program is one running script. Its thread is only used with mu held, so
// callbacks from different subscriptions never overlap.
type program struct {
	id      int
	ctx     context.Context
	mu      sync.Mutex
	thread  *starlark.Thread
	stopped bool
}

func (p *program) Ctx() context.Context {
	return p.ctx
}

// tag is the id term every fact the program claims starts with. It also owns
// the program's subscriptions.
func (p *program) tag() string {
	return "#" + strconv.Itoa(p.id)
}

var fileOptions = &syntax.FileOptions{
	TopLevelControl: true,
	GlobalReassign:  true,
	While:           true,
}

// Run starts a program. Running an already running program does nothing.
func (m *Manager) Run(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runLocked(ctx, id)
}

func (m *Manager) runLocked(ctx context.Context, id int) error {
	if _, ok := m.mu.running[id]; ok {
		return nil
	}
	src, ok := m.mu.sources[id]
	if !ok {
		return &noSuchProgram{ID: id}
	}

	p := &program{
		id:  id,
		ctx: context.WithValue(ctx, clog.ProgramIDKey, id),
	}
	p.thread = &starlark.Thread{
		Name: fmt.Sprintf("program %d", id),
		Print: func(_ *starlark.Thread, msg string) {
			clog.Println(p, msg)
		},
	}
	m.mu.running[id] = p

	p.mu.Lock()
	_, err := starlark.ExecFileOptions(fileOptions, p.thread, src.path, src.code, m.builtins(p))
	p.mu.Unlock()
	if err != nil {
		m.stopLocked(id)
		if evalErr, ok := err.(*starlark.EvalError); ok {
			clog.Errorf(p, "%s", evalErr.Backtrace())
		}
		return errors.Wrapf(err, "running program %d", id)
	}
	clog.Printf(p, "started")
	return nil
}

// Stop stops a program: its subscriptions go away and so does every fact it
// claimed. Stopping a program that isn't running does nothing.
func (m *Manager) Stop(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(id)
}

func (m *Manager) stopLocked(id int) {
	p, ok := m.mu.running[id]
	if !ok {
		return
	}
	delete(m.mu.running, id)

	// Wait out a callback in flight; later ones see stopped and return.
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	subs := m.db.RemoveByOwner(p.tag())
	facts := m.db.Retract(p.tag() + " %")
	clog.Printf(p, "stopped; dropped %d subscriptions and %d facts", subs, facts)
}

// StopAll stops every running program.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.mu.running {
		m.stopLocked(id)
	}
}

// Running returns the ids of the running programs, ascending.
func (m *Manager) Running() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.mu.running))
	for id := range m.mu.running {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Sync runs the programs whose markers are seen and stops the rest. The boot
// program always runs. Markers without source are skipped.
func (m *Manager) Sync(ctx context.Context, seen []int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := map[int]bool{m.cfg.BootID: true}
	for _, id := range seen {
		want[id] = true
	}

	var stale []int
	for id := range m.mu.running {
		if !want[id] {
			stale = append(stale, id)
		}
	}
	sort.Ints(stale)
	for _, id := range stale {
		m.stopLocked(id)
	}

	ids := make([]int, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		err := m.runLocked(ctx, id)
		switch err.(type) {
		case nil:
		case *noSuchProgram:
			clog.Debugf(clog.From(ctx), "%v", err)
		default:
			clog.Errorf(clog.From(ctx), "%v", err)
		}
	}
}

// Reload re-reads a script. If the program was running it is restarted with
// the new source.
func (m *Manager) Reload(ctx context.Context, path string) error {
	id, err := m.loadFile(path)
	if err != nil || id < 0 {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mu.running[id]; !ok {
		return nil
	}
	m.stopLocked(id)
	return m.runLocked(ctx, id)
}

// Unload forgets a deleted script, stopping it if it was running.
func (m *Manager) Unload(path string) {
	id, ok := ProgramID(path)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(id)
	delete(m.mu.sources, id)
	m.db.Retract(m.sourcePattern(id))
	clog.Printf(m, "unloaded program %d", id)
}
