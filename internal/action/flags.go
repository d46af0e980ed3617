// Package action implements the scenario engine's data model:
// the Action and Scenario records, the action-type registry,
// and the per-action lifecycle state machine. The registry and
// the records it types are kept in one package because the underlying
// data model treats "Action Type" as intrinsic to Action, not a separate
// standalone system (see DESIGN.md).
package action

// Flags is the action type flag bitset.
type Flags uint32

const (
	FlagConfig Flags = 1 << iota
	FlagNeedsClock
	FlagAsync
	FlagCanExecuteOnAddition
	FlagCanBeOptional
	FlagDoesntNeedPipeline
	FlagNoExecutionNotFatal
	FlagInterlaced
	FlagHandledInConfig
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }
