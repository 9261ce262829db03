package domain

import "time"

type OperationKind string

const (
	OperationAdd       OperationKind = "add"
	OperationEdit      OperationKind = "edit"
	OperationDelete    OperationKind = "delete"
	OperationImport    OperationKind = "import"
	OperationDuplicate OperationKind = "duplicate"
)

// DefaultHistoryDepth bounds the undo stack.
const DefaultHistoryDepth = 10

// Operation is one undoable ledger mutation.
//
// Before holds records as they were prior to the mutation (edit, delete) and
// After holds records as they are once it is applied (add, edit, import,
// duplicate). Balances and Sales are kept in the order they were applied.
type Operation struct {
	ID       string         `json:"id"`
	Kind     OperationKind  `json:"kind"`
	At       time.Time      `json:"at"`
	Before   []Transaction  `json:"before,omitempty"`
	After    []Transaction  `json:"after,omitempty"`
	Balances []BalanceDelta `json:"balances,omitempty"`
	Sales    []SaleDelta    `json:"sales,omitempty"`
}

// History is the undo and redo stacks of one session. The top of each stack
// is the last element.
type History struct {
	Undo []Operation `json:"undo"`
	Redo []Operation `json:"redo"`
}

// Push records op, dropping the oldest entry beyond depth and discarding
// everything that could have been redone.
func (h *History) Push(op Operation, depth int) {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	h.Undo = append(h.Undo, op)
	if len(h.Undo) > depth {
		h.Undo = h.Undo[len(h.Undo)-depth:]
	}
	h.Redo = nil
}

func (h *History) PeekUndo() (Operation, bool) {
	if len(h.Undo) == 0 {
		return Operation{}, false
	}
	return h.Undo[len(h.Undo)-1], true
}

func (h *History) PeekRedo() (Operation, bool) {
	if len(h.Redo) == 0 {
		return Operation{}, false
	}
	return h.Redo[len(h.Redo)-1], true
}

// MarkUndone moves the top undo entry to the redo stack.
func (h *History) MarkUndone() {
	op, ok := h.PeekUndo()
	if !ok {
		return
	}
	h.Undo = h.Undo[:len(h.Undo)-1]
	h.Redo = append(h.Redo, op)
}

// MarkRedone moves the top redo entry back to the undo stack.
func (h *History) MarkRedone(depth int) {
	op, ok := h.PeekRedo()
	if !ok {
		return
	}
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	h.Redo = h.Redo[:len(h.Redo)-1]
	h.Undo = append(h.Undo, op)
	if len(h.Undo) > depth {
		h.Undo = h.Undo[len(h.Undo)-depth:]
	}
}
