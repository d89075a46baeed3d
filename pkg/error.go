package roomdb

import "fmt"

type parseError struct {
	error error
}

func (e *parseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.error.Error())
}

type validationError struct {
	error error
}

func (e *validationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.error.Error())
}

type unknownVerb struct {
	Verb string
}

func (e *unknownVerb) Error() string {
	return fmt.Sprintf("unknown statement: %s", e.Verb)
}

type wrongNumClauses struct {
	Verb   string
	Wanted string
	Got    int
}

func (e *wrongNumClauses) Error() string {
	return fmt.Sprintf("%s takes %s clauses; given %d", e.Verb, e.Wanted, e.Got)
}

type callbackPanic struct {
	value string
}

func (e *callbackPanic) Error() string {
	return fmt.Sprintf("callback panicked: %s", e.value)
}
