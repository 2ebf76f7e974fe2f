package command

// Result is the closed set of outcomes a handler reports to the dispatcher.
type Result int

const (
	Success Result = iota
	InvalidSyntax
	InternalError
	UnknownCommand
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case InvalidSyntax:
		return "invalid_syntax"
	case InternalError:
		return "internal_error"
	case UnknownCommand:
		return "unknown_command"
	}
	return "internal_error"
}
