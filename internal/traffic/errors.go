package traffic

import "fmt"

// ParseError reports a line of the status file that could not be turned into
// a record. The refresh pipeline collects these rather than aborting, so a
// single bad line never costs a whole snapshot.
type ParseError struct {
	Line    string // raw offending line
	Message string
	Err     error // underlying cause, may be nil
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (line %q)", e.Message, e.Err, e.Line)
	}
	return fmt.Sprintf("%s (line %q)", e.Message, e.Line)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FieldCountError reports a delimited line with the wrong number of fields
// for its section.
type FieldCountError struct {
	Expected int
	Actual   int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("expected %d fields, got %d", e.Expected, e.Actual)
}

// UnknownClientTypeError reports a client line whose type discriminator is
// neither a pilot nor a controller marker.
type UnknownClientTypeError struct {
	ClientType string
}

func (e *UnknownClientTypeError) Error() string {
	return fmt.Sprintf("unknown client type %q", e.ClientType)
}

// AltitudeFormatError reports a filed altitude string that matches none of
// the accepted forms.
type AltitudeFormatError struct {
	Value string
}

func (e *AltitudeFormatError) Error() string {
	return fmt.Sprintf("unrecognized altitude format %q", e.Value)
}
