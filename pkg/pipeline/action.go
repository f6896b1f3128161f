package pipeline

import (
	"encoding/json"
	"errors"

	"github.com/conveyr/conveyr/pkg/dataset"
)

// Action is one entry of the action log: either a deferred named call or a
// join marker. A join marker has an empty Name and carries only the
// datasets to merge into the next action's call.
type Action struct {
	Name   string
	Args   []any
	Kwargs map[string]any
	Join   []dataset.Dataset
}

// IsJoin reports whether the entry is a join marker.
func (a Action) IsJoin() bool {
	return a.Name == ""
}

// Log is the ordered, append-only record of deferred actions declared on a
// pipeline. Appending performs no validation against any batch kind; a log
// may be declared before the batch kind is known and attached later. The
// log is frozen and validated when a run starts.
type Log struct {
	entries []Action
}

// NewLog returns an empty action log.
func NewLog() *Log {
	return &Log{}
}

// Append records a deferred call at the end of the log.
func (l *Log) Append(name string, args []any, kwargs map[string]any) {
	l.entries = append(l.entries, Action{Name: name, Args: args, Kwargs: kwargs})
}

// AppendJoin records a join marker tagging the next appended action with
// secondary datasets.
func (l *Log) AppendJoin(datasets ...dataset.Dataset) {
	l.entries = append(l.entries, Action{Join: datasets})
}

// Len returns the number of log entries, join markers included.
func (l *Log) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the log entries.
func (l *Log) Entries() []Action {
	out := make([]Action, len(l.entries))
	copy(out, l.entries)
	return out
}

// validate checks the frozen log against a capability registry: every named
// action must resolve, and the log must not end in a join marker.
func (l *Log) validate(reg *Registry) error {
	for i, a := range l.entries {
		if a.IsJoin() {
			if i == len(l.entries)-1 {
				return DanglingJoinError()
			}
			continue
		}
		if _, err := reg.Resolve(a.Name); err != nil {
			return err
		}
	}
	return nil
}

type actionJSON struct {
	Name   string         `json:"name"`
	Args   []any          `json:"args,omitempty"`
	Kwargs map[string]any `json:"kwargs,omitempty"`
}

// MarshalJSON serializes the log. Together with a reference to the source
// dataset this is the entire persisted state of a pipeline. Logs containing
// join markers cannot be serialized, since the joined datasets are live
// collaborators with no portable representation.
func (l *Log) MarshalJSON() ([]byte, error) {
	out := make([]actionJSON, 0, len(l.entries))
	for _, a := range l.entries {
		if a.IsJoin() {
			return nil, errors.New("cannot serialize an action log containing join markers")
		}
		out = append(out, actionJSON{Name: a.Name, Args: a.Args, Kwargs: a.Kwargs})
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a log serialized with MarshalJSON.
func (l *Log) UnmarshalJSON(data []byte) error {
	var in []actionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	l.entries = l.entries[:0]
	for _, a := range in {
		l.entries = append(l.entries, Action{Name: a.Name, Args: a.Args, Kwargs: a.Kwargs})
	}
	return nil
}
