package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

const (
	fieldWindows          = "windows"
	fieldName             = "name"
	fieldTabsNumber       = "tabsNumber"
	fieldDate             = "date"
	fieldTag              = "tag"
	fieldSessionStartTime = "sessionStartTime"
	fieldURL              = "url"
	fieldTitle            = "title"
	fieldFavIconURL       = "favIconUrl"
)

// SessionOutcome is the result of decoding one element of the top-level array.
type SessionOutcome struct {
	Index   int
	Session Session
	Err     error
}

// Decode parses a complete export. Any malformed session fails the whole
// document.
func Decode(text string) (SessionList, error) {
	return DecodeBytes([]byte(text))
}

func DecodeBytes(data []byte) (SessionList, error) {
	root, err := parseRoot(data)
	if err != nil {
		return nil, err
	}

	sessions := make(SessionList, 0)
	var decodeErr error
	forEachElement(root, func(index int, value gjson.Result) bool {
		var session Session
		session, decodeErr = decodeSession(indexPath(index), value)
		if decodeErr != nil {
			return false
		}
		sessions = append(sessions, session)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return sessions, nil
}

// DecodeEach parses a complete export but isolates failures to the session
// they occur in. Syntax errors and a non-array top level still fail the
// whole document since no element boundaries can be trusted.
func DecodeEach(data []byte) ([]SessionOutcome, error) {
	root, err := parseRoot(data)
	if err != nil {
		return nil, err
	}

	outcomes := make([]SessionOutcome, 0)
	forEachElement(root, func(index int, value gjson.Result) bool {
		session, err := decodeSession(indexPath(index), value)
		outcomes = append(outcomes, SessionOutcome{Index: index, Session: session, Err: err})
		return true
	})
	return outcomes, nil
}

// DecodeOutcomes returns one outcome per session either way; without
// isolation any session error fails the whole call.
func DecodeOutcomes(data []byte, isolate bool) ([]SessionOutcome, error) {
	if isolate {
		return DecodeEach(data)
	}
	sessions, err := DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	return sessions.Outcomes(), nil
}

// Outcomes wraps already decoded sessions as successful outcomes.
func (l SessionList) Outcomes() []SessionOutcome {
	outcomes := make([]SessionOutcome, len(l))
	for i, session := range l {
		outcomes[i] = SessionOutcome{Index: i, Session: session}
	}
	return outcomes
}

func (l *SessionList) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	sessions, err := DecodeBytes(data)
	if err != nil {
		return err
	}
	*l = sessions
	return nil
}

func (s *Session) UnmarshalJSON(data []byte) error {
	value, err := parseDocument(data)
	if err != nil || value.Type == gjson.Null {
		return err
	}
	session, err := decodeSession("$", value)
	if err != nil {
		return err
	}
	*s = session
	return nil
}

func (w *Window) UnmarshalJSON(data []byte) error {
	value, err := parseDocument(data)
	if err != nil || value.Type == gjson.Null {
		return err
	}
	window, err := decodeWindow("$", value)
	if err != nil {
		return err
	}
	*w = window
	return nil
}

func (t *Tab) UnmarshalJSON(data []byte) error {
	value, err := parseDocument(data)
	if err != nil || value.Type == gjson.Null {
		return err
	}
	tab, err := decodeTab("$", value)
	if err != nil {
		return err
	}
	*t = tab
	return nil
}

// maxDepth matches the nesting limit of encoding/json.
const maxDepth = 10000

// parseDocument bounds nesting before handing data to gjson, whose validator
// recurses once per level.
func parseDocument(data []byte) (gjson.Result, error) {
	if err := checkDepth(data); err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, locateSyntaxError(data)
	}
	return gjson.ParseBytes(data), nil
}

// checkDepth scans data once without recursion, counting brackets outside
// string literals.
func checkDepth(data []byte) error {
	depth := 0
	inString, escaped := false, false
	for i, c := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
			if depth > maxDepth {
				return &SyntaxError{Offset: int64(i), Msg: fmt.Sprintf("nesting deeper than %d levels", maxDepth)}
			}
		case ']', '}':
			depth--
		}
	}
	return nil
}

// locateSyntaxError finds the offset of the first syntax problem. gjson only
// reports validity, so the position comes from encoding/json's scanner,
// which is iterative and safe once depth is bounded.
func locateSyntaxError(data []byte) error {
	var raw json.RawMessage
	err := json.Unmarshal(data, &raw)
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &SyntaxError{Offset: syntaxErr.Offset, Msg: syntaxErr.Error()}
	}
	return &SyntaxError{Offset: -1, Msg: "document rejected by parser"}
}

func parseRoot(data []byte) (gjson.Result, error) {
	root, err := parseDocument(data)
	if err != nil {
		return gjson.Result{}, err
	}
	if !root.IsArray() {
		return gjson.Result{}, fmt.Errorf("%w at top level, got %s", ErrNotArray, describe(root))
	}
	return root, nil
}

func isNull(data []byte) bool {
	value, err := parseDocument(data)
	return err == nil && value.Type == gjson.Null
}

func forEachElement(array gjson.Result, fn func(index int, value gjson.Result) bool) {
	index := 0
	array.ForEach(func(_, value gjson.Result) bool {
		keepGoing := fn(index, value)
		index++
		return keepGoing
	})
}

// decodeSession walks the session object once in document order. Keys that
// are not recognised have already been checked by the syntax pass and are
// dropped.
func decodeSession(path string, value gjson.Result) (Session, error) {
	if !value.IsObject() {
		return Session{}, notObject(path, "session", value)
	}

	var session Session
	var err error
	value.ForEach(func(key, field gjson.Result) bool {
		name := key.String()
		fieldPath := path + "." + name
		switch name {
		case fieldWindows:
			session.Windows, err = decodeIdentified(fieldPath, name, field, decodeWindow)
		case fieldName:
			session.Name, err = decodeString(fieldPath, name, field)
		case fieldTabsNumber:
			var n uint64
			n, err = decodeUnsigned(fieldPath, name, field, strconv.IntSize)
			session.TabsNumber = uint(n)
		case fieldDate:
			session.Date, err = decodeUnsigned(fieldPath, name, field, 64)
		case fieldTag:
			session.Tag, err = decodeString(fieldPath, name, field)
		case fieldSessionStartTime:
			session.SessionStartTime, err = decodeString(fieldPath, name, field)
		}
		return err == nil
	})
	if err != nil {
		return sessionIdentity(session, value), err
	}
	return session, nil
}

// sessionIdentity keeps the name of a session that failed to decode so
// isolated failures can still be attributed. The name may appear after the
// offending field, so it is looked up directly when the walk stopped early.
func sessionIdentity(partial Session, value gjson.Result) Session {
	if partial.Name != "" {
		return Session{Name: partial.Name}
	}
	if name := value.Get(fieldName); name.Type == gjson.String {
		return Session{Name: name.Str}
	}
	return Session{}
}

// decodeWindow treats every key of the window object as a tab id.
func decodeWindow(path string, value gjson.Result) (Window, error) {
	tabs, err := decodeIdentified(path, "window", value, decodeTab)
	if err != nil {
		return Window{}, err
	}
	return Window{Tabs: tabs}, nil
}

func decodeTab(path string, value gjson.Result) (Tab, error) {
	if !value.IsObject() {
		return Tab{}, notObject(path, "tab", value)
	}

	var tab Tab
	var err error
	value.ForEach(func(key, field gjson.Result) bool {
		name := key.String()
		fieldPath := path + "." + name
		switch name {
		case fieldURL:
			tab.URL, err = decodeString(fieldPath, name, field)
		case fieldTitle:
			tab.Title, err = decodeString(fieldPath, name, field)
		case fieldFavIconURL:
			tab.FavIconURL, err = decodeString(fieldPath, name, field)
		}
		return err == nil
	})
	if err != nil {
		return Tab{}, err
	}
	return tab, nil
}

// decodeIdentified converts an id-keyed object into a slice that keeps each
// key next to its value, in the order the keys appear in the document.
func decodeIdentified[T any](path, field string, value gjson.Result, decode func(string, gjson.Result) (T, error)) ([]Identified[T], error) {
	if !value.IsObject() {
		return nil, notObject(path, field, value)
	}

	entries := make([]Identified[T], 0)
	var err error
	value.ForEach(func(key, entry gjson.Result) bool {
		id := key.String()
		var decoded T
		decoded, err = decode(path+"."+id, entry)
		if err != nil {
			return false
		}
		entries = append(entries, Identified[T]{ID: id, Value: decoded})
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func decodeString(path, field string, value gjson.Result) (string, error) {
	if value.Type != gjson.String {
		return "", typeMismatch(path, field, "string", value)
	}
	return value.Str, nil
}

// decodeUnsigned accepts only plain non-negative integer literals that fit in
// bitSize bits; fractions, exponents and signs are type mismatches.
func decodeUnsigned(path, field string, value gjson.Result, bitSize int) (uint64, error) {
	expected := fmt.Sprintf("unsigned %d-bit integer", bitSize)
	if value.Type != gjson.Number {
		return 0, typeMismatch(path, field, expected, value)
	}
	n, err := strconv.ParseUint(value.Raw, 10, bitSize)
	if err != nil {
		return 0, &FieldError{Path: path, Field: field, Expected: expected, Actual: describe(value), Err: err}
	}
	return n, nil
}

func indexPath(index int) string {
	return "[" + strconv.Itoa(index) + "]"
}
