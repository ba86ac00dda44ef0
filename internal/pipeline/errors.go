package pipeline

import "fmt"

// ParseError represents a descriptor parsing error.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownKeyError reports a key the descriptor schema does not define.
type UnknownKeyError struct {
	File string
	Key  string
	Line int
}

func (e *UnknownKeyError) Error() string {
	msg := fmt.Sprintf("unknown key %q in pipeline descriptor", e.Key)
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
		}
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
