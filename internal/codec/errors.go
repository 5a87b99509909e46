package codec

import (
	"errors"
	"fmt"
)

// SchemaViolation reports a wire value that matches no decodable shape, or
// more than one marker shape at once. Path locates the offending node
// ("$" is the root, "$.a[2].b" a nested field).
type SchemaViolation struct {
	Path   string
	Reason string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("schema violation at %s: %s", e.Path, e.Reason)
}

// IsSchemaViolation reports whether err is (or wraps) a SchemaViolation.
func IsSchemaViolation(err error) bool {
	var sv *SchemaViolation
	return errors.As(err, &sv)
}

func violation(path, format string, args ...any) *SchemaViolation {
	return &SchemaViolation{Path: path, Reason: fmt.Sprintf(format, args...)}
}
