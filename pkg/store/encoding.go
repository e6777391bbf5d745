package store

import (
	"bytes"
	"encoding/gob"

	"github.com/crystal-mush/gofugue/pkg/script"
	"github.com/crystal-mush/gofugue/pkg/world"
)

// varRecord is the persisted form of one global variable. Values are
// stored as text and reparsed on load, so "5" comes back numeric.
type varRecord struct {
	Name     string
	Value    string
	Exported bool
}

func encodeVar(rec *varRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeVar(data []byte) (*varRecord, error) {
	var rec varRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func encodeMacro(m *script.Macro) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeMacro(data []byte) (*script.Macro, error) {
	var m script.Macro
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func encodeWorld(w *world.Info) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeWorld(data []byte) (*world.Info, error) {
	var w world.Info
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return nil, err
	}
	// Connected is runtime state, never trusted from disk.
	w.Connected = false
	return &w, nil
}
