package script

import "fmt"

// ResultKind enumerates every possible outcome of one Execute call.
// Exactly one variant is produced per call.
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultError
	ResultSend          // send Text to the World
	ResultClientCommand // delegate Text to the host's own command set
	ResultRecall        // recall scrollback with Recall options
	ResultProcess       // register Proc as a background process
	ResultQuote         // batch Quote lines with a disposition
	ResultAbortLoad     // abort the current file load
	ResultPassThrough   // not a script command; raw game input
	ResultUnknown       // unrecognized leading token
)

// QuoteDisposition says what to do with each quoted/batched line.
type QuoteDisposition int

const (
	QuoteSend QuoteDisposition = iota
	QuoteEcho
	QuoteExec
)

// QuoteSpec carries the lines produced by a quote/batch command.
type QuoteSpec struct {
	Lines       []string
	Disposition QuoteDisposition
	World       string
}

// CommandResult is the single ephemeral outcome of one Execute call.
type CommandResult struct {
	Kind    ResultKind
	Message string // success detail or error text
	World   string // ResultSend target ("" = current world)
	Text    string // ResultSend / ResultClientCommand payload
	Recall  *RecallOptions
	Proc    *Process
	Quote   *QuoteSpec
}

// OK reports whether the result is a plain success.
func (r CommandResult) OK() bool { return r.Kind == ResultSuccess }

// IsError reports whether the result is the error variant.
func (r CommandResult) IsError() bool { return r.Kind == ResultError }

func okResult() CommandResult {
	return CommandResult{Kind: ResultSuccess}
}

func okMsg(format string, args ...any) CommandResult {
	return CommandResult{Kind: ResultSuccess, Message: fmt.Sprintf(format, args...)}
}

func errMsg(format string, args ...any) CommandResult {
	return CommandResult{Kind: ResultError, Message: fmt.Sprintf(format, args...)}
}

func sendResult(world, text string) CommandResult {
	return CommandResult{Kind: ResultSend, World: world, Text: text}
}

func clientCommand(text string) CommandResult {
	return CommandResult{Kind: ResultClientCommand, Text: text}
}

func passThrough() CommandResult {
	return CommandResult{Kind: ResultPassThrough}
}

func unknownCommand(name string) CommandResult {
	return CommandResult{Kind: ResultUnknown, Message: fmt.Sprintf("unknown command: #%s", name)}
}

func abortLoad() CommandResult {
	return CommandResult{Kind: ResultAbortLoad}
}
