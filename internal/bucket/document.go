package bucket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNotFound is returned when a key or nested path does not exist.
	ErrNotFound = errors.New("bucket not found")

	// ErrMalformedDocument is returned when a stored value is not a JSON object.
	ErrMalformedDocument = errors.New("bucket value is not a JSON object")

	// ErrStructuralOverwrite is returned when a write would replace an object or array.
	ErrStructuralOverwrite = errors.New("refusing to overwrite object or array value")
)

// object is one level of a nested document.
type object = map[string]any

// parseDocument decodes value as a JSON object. Numbers are kept as
// json.Number so documents written by other tools survive a round trip.
func parseDocument(value string) (object, error) {
	dec := json.NewDecoder(strings.NewReader(value))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedDocument)
	}

	doc, ok := root.(object)
	if !ok {
		return nil, ErrMalformedDocument
	}
	return doc, nil
}

// encodeValue serializes v without HTML escaping and without a trailing newline.
func encodeValue(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// isStructural reports whether v is a JSON object or array.
func isStructural(v any) bool {
	switch v.(type) {
	case object, []any:
		return true
	default:
		return false
	}
}

// MergeNested writes value at path inside the document held by existing and
// returns the re-encoded document. A missing or malformed document starts
// from {}. Intermediate segments that are absent or not objects are replaced
// by fresh objects. If the final segment already holds an object or array the
// merge fails with ErrStructuralOverwrite and nothing changes.
func MergeNested(existing string, path []string, value string) (string, error) {
	if len(path) == 0 {
		return "", fmt.Errorf("%w: empty nested path", ErrNotFound)
	}

	root, err := parseDocument(existing)
	if err != nil {
		root = object{}
	}

	cur := root
	for _, seg := range path[:len(path)-1] {
		child, ok := cur[seg].(object)
		if !ok {
			child = object{}
			cur[seg] = child
		}
		cur = child
	}

	last := path[len(path)-1]
	if isStructural(cur[last]) {
		return "", fmt.Errorf("%w at %q", ErrStructuralOverwrite, strings.Join(path, Delimiter))
	}
	cur[last] = value

	return encodeValue(root)
}

// ExtractNested returns the value at path inside the document. String leaves
// are returned as-is; any other value is returned as JSON text.
func ExtractNested(value string, path []string) (string, error) {
	root, err := parseDocument(value)
	if err != nil {
		return "", err
	}

	var cur any = root
	for _, seg := range path {
		obj, ok := cur.(object)
		if !ok {
			return "", ErrNotFound
		}
		if cur, ok = obj[seg]; !ok {
			return "", ErrNotFound
		}
	}

	if s, ok := cur.(string); ok {
		return s, nil
	}
	return encodeValue(cur)
}

// DeleteNested removes the value at path from the document. It reports empty
// when the document has no keys left, in which case the returned document is "".
func DeleteNested(value string, path []string) (doc string, empty bool, err error) {
	if len(path) == 0 {
		return "", false, fmt.Errorf("%w: empty nested path", ErrNotFound)
	}

	root, err := parseDocument(value)
	if err != nil {
		return "", false, err
	}

	cur := root
	for _, seg := range path[:len(path)-1] {
		child, ok := cur[seg].(object)
		if !ok {
			return "", false, ErrNotFound
		}
		cur = child
	}

	last := path[len(path)-1]
	if _, ok := cur[last]; !ok {
		return "", false, ErrNotFound
	}
	delete(cur, last)

	if len(root) == 0 {
		return "", true, nil
	}

	doc, err = encodeValue(root)
	return doc, false, err
}

// isDocument reports whether value holds a JSON object or array.
func isDocument(value string) bool {
	if value == "" {
		return false
	}
	dec := json.NewDecoder(strings.NewReader(value))
	var v any
	if err := dec.Decode(&v); err != nil {
		return false
	}
	if _, err := dec.Token(); err != io.EOF {
		return false
	}
	return isStructural(v)
}
