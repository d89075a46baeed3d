package roomdb

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vilterp/roomdb/pkg/fact"
)

type ResultVariable struct {
	Name  string
	Value string
}

// Result is one query solution as seen outside the database: each variable
// mapped to the rendered text of its term, in binding order. It encodes as a
// JSON object whose keys keep that order.
type Result []ResultVariable

func toResult(env *fact.Env) Result {
	bindings := env.Bindings()
	result := make(Result, len(bindings))
	for idx, b := range bindings {
		result[idx] = ResultVariable{Name: b.Name, Value: b.Term.String()}
	}
	return result
}

func toResults(envs []*fact.Env) []Result {
	results := make([]Result, len(envs))
	for idx, env := range envs {
		results[idx] = toResult(env)
	}
	return results
}

func (r Result) Get(name string) (string, bool) {
	for _, v := range r {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

func (r Result) Map() map[string]string {
	m := make(map[string]string, len(r))
	for _, v := range r {
		m[v.Name] = v.Value
	}
	return m
}

func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, v := range r {
		if idx > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(v.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(v.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Result) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("result: expected object, got %v", tok)
	}
	result := Result{}
	for dec.More() {
		nameTok, err := dec.Token()
		if err != nil {
			return err
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		result = append(result, ResultVariable{Name: nameTok.(string), Value: value})
	}
	*r = result
	return nil
}
