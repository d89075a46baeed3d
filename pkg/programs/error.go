package programs

import "fmt"

type noSuchProgram struct {
	ID int
}

func (e *noSuchProgram) Error() string {
	return fmt.Sprintf("no source code for program %d", e.ID)
}

type badArgument struct {
	fn   string
	want string
	got  string
}

func (e *badArgument) Error() string {
	return fmt.Sprintf("%s: want %s, got %s", e.fn, e.want, e.got)
}
