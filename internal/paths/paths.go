// Package paths classifies slash-delimited store paths by segment parity.
//
// A document path has an even number of non-empty segments ("users/alice"),
// a collection path an odd number ("users", "users/alice/posts"). The root
// ("" or "/") has zero segments and is neither.
package paths

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter separates path segments.
const Delimiter = "/"

// Kind is the classification of a path.
type Kind int

const (
	// KindRoot is the database root (zero segments).
	KindRoot Kind = iota
	// KindCollection is a path with an odd number of segments.
	KindCollection
	// KindDocument is a path with an even number of segments.
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindCollection:
		return "collection"
	case KindDocument:
		return "document"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// PathParityError reports a path whose segment count does not match the
// kind an operation requires. It is always raised before any store call.
type PathParityError struct {
	Path     string
	Expected Kind
	Actual   Kind
	Reason   string // set when the path is malformed rather than mis-classified
}

func (e *PathParityError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s path %q: %s", e.Expected, e.Path, e.Reason)
	}
	return fmt.Sprintf("expected %s path, got %s path %q", e.Expected, e.Actual, e.Path)
}

// IsParityError reports whether err is (or wraps) a PathParityError.
func IsParityError(err error) bool {
	var pe *PathParityError
	return errors.As(err, &pe)
}

// Segments splits p into its segments. Leading and trailing delimiters are
// ignored; an empty inner segment ("a//b") is an error.
func Segments(p string) ([]string, error) {
	trimmed := strings.Trim(p, Delimiter)
	if trimmed == "" {
		return nil, nil
	}
	segs := strings.Split(trimmed, Delimiter)
	for i, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("empty segment at position %d", i)
		}
	}
	return segs, nil
}

// Classify returns the kind of p by segment parity.
func Classify(p string) (Kind, error) {
	segs, err := Segments(p)
	if err != nil {
		return KindRoot, err
	}
	return kindOf(len(segs)), nil
}

func kindOf(n int) Kind {
	switch {
	case n == 0:
		return KindRoot
	case n%2 == 0:
		return KindDocument
	default:
		return KindCollection
	}
}

// IsDocument reports whether p is a well-formed document path.
func IsDocument(p string) bool {
	k, err := Classify(p)
	return err == nil && k == KindDocument
}

// IsCollection reports whether p is a well-formed collection path.
func IsCollection(p string) bool {
	k, err := Classify(p)
	return err == nil && k == KindCollection
}

// Require returns p in normalized form if it has the expected kind, or a
// *PathParityError otherwise.
func Require(p string, expected Kind) (string, error) {
	segs, err := Segments(p)
	if err != nil {
		return "", &PathParityError{Path: p, Expected: expected, Reason: err.Error()}
	}
	actual := kindOf(len(segs))
	if actual != expected {
		return "", &PathParityError{Path: p, Expected: expected, Actual: actual}
	}
	return strings.Join(segs, Delimiter), nil
}

// RequireDocument is Require(p, KindDocument).
func RequireDocument(p string) (string, error) {
	return Require(p, KindDocument)
}

// RequireCollection is Require(p, KindCollection).
func RequireCollection(p string) (string, error) {
	return Require(p, KindCollection)
}

// Join concatenates paths, dropping empty segments.
func Join(parts ...string) string {
	var segs []string
	for _, part := range parts {
		for _, s := range strings.Split(part, Delimiter) {
			if s != "" {
				segs = append(segs, s)
			}
		}
	}
	return strings.Join(segs, Delimiter)
}

// Base returns the last segment of p (the document or collection id).
func Base(p string) string {
	trimmed := strings.Trim(p, Delimiter)
	if i := strings.LastIndex(trimmed, Delimiter); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// Parent returns p without its last segment. The parent of a document is
// its collection; the parent of a collection is its owning document, or ""
// for a root collection.
func Parent(p string) string {
	trimmed := strings.Trim(p, Delimiter)
	if i := strings.LastIndex(trimmed, Delimiter); i >= 0 {
		return trimmed[:i]
	}
	return ""
}
