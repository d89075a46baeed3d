package programs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/vilterp/roomdb/pkg/fact"
	clog "github.com/vilterp/roomdb/pkg/log"
)

// Scripts are named "<id>.star" or "<id>__<label>.star".
var scriptName = regexp.MustCompile(`^(\d+)(?:__.+)*\.star$`)

// ProgramID extracts the program id from a script's file name.
func ProgramID(path string) (int, bool) {
	match := scriptName.FindStringSubmatch(filepath.Base(path))
	if match == nil {
		return 0, false
	}
	id, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

type source struct {
	path string
	code string
}

// sourcePattern matches the source code fact of one program.
func (m *Manager) sourcePattern(id int) string {
	return fmt.Sprintf("#%s %d source code $", m.cfg.SourceID, id)
}

// sourceFact keeps the whole source in one term so it survives rendering.
func (m *Manager) sourceFact(id int, code string) *fact.Fact {
	return fact.New(
		fact.NewID(m.cfg.SourceID),
		fact.NewText(strconv.Itoa(id)),
		fact.NewText("source"),
		fact.NewText("code"),
		fact.NewText(code),
	)
}

// Load reads every script in the scripts dir and claims its source.
// Files that aren't named like scripts are skipped.
func (m *Manager) Load() error {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		return errors.Wrap(err, "reading scripts dir")
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(m.cfg.Dir, entry.Name())
		if _, err := m.loadFile(path); err != nil {
			return err
		}
	}
	return nil
}

// loadFile (re)reads one script and returns its id, or -1 if the file isn't
// a script.
func (m *Manager) loadFile(path string) (int, error) {
	id, ok := ProgramID(path)
	if !ok {
		clog.Debugf(m, "skipping %s", path)
		return -1, nil
	}
	code, err := os.ReadFile(path)
	if err != nil {
		return id, errors.Wrapf(err, "reading program %d", id)
	}

	m.mu.Lock()
	m.mu.sources[id] = &source{path: path, code: string(code)}
	m.mu.Unlock()

	m.db.Replace(m.sourcePattern(id), []*fact.Fact{m.sourceFact(id, string(code))})
	clog.Printf(m, "loaded program %d from %s", id, path)
	return id, nil
}

// Sources returns the ids of every loaded program, ascending.
func (m *Manager) Sources() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.mu.sources))
	for id := range m.mu.sources {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
