package domain

import (
	"cmp"
	"encoding/binary"
	"encoding/json"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// Action is a recorded execution: the input files as they were when it ran, the output
// files it produced, and the value to hand back on replay.
type Action struct {
	Inputs  []File          `json:"inputs"`
	Outputs []File          `json:"outputs"`
	Value   json.RawMessage `json:"value"`
}

// NewAction returns an Action with inputs and outputs sorted by name.
func NewAction(inputs, outputs []File, value json.RawMessage) Action {
	return Action{
		Inputs:  sortedFiles(inputs),
		Outputs: sortedFiles(outputs),
		Value:   slices.Clone(value),
	}
}

func sortedFiles(files []File) []File {
	out := slices.Clone(files)
	slices.SortFunc(out, func(a, b File) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// InputsDigest hashes the input file set. It distinguishes actions recorded under one key.
func (a Action) InputsDigest() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, f := range sortedFiles(a.Inputs) {
		_, _ = h.Write(binary.LittleEndian.AppendUint64(buf[:0], f.Digest()))
	}
	return h.Sum64()
}

// OutputNames returns the names of the output files.
func (a Action) OutputNames() []string {
	names := make([]string, len(a.Outputs))
	for i, f := range a.Outputs {
		names[i] = f.Name
	}
	return names
}
