// Package models holds the Tab Session Manager export types and the decoder
// that turns id-keyed JSON objects into ordered, id-tagged slices.
package models

// Identified is one entry of an id-keyed JSON object, tagged with its key.
type Identified[T any] struct {
	ID    string
	Value T
}

type Tab struct {
	URL        string // url
	Title      string // title
	FavIconURL string // favIconUrl
}

// Window is a browser window's tabs in the order their ids appear in the export.
type Window struct {
	Tabs []Identified[Tab]
}

// Tab returns the first tab recorded under id.
func (w Window) Tab(id string) (Tab, bool) {
	for _, tab := range w.Tabs {
		if tab.ID == id {
			return tab.Value, true
		}
	}
	return Tab{}, false
}

type Session struct {
	Windows          []Identified[Window] // windows
	Name             string               // name
	TabsNumber       uint                 // tabsNumber, the declared total
	Date             uint64               // date, milliseconds since epoch
	Tag              string               // tag
	SessionStartTime string               // sessionStartTime
}

// Window returns the first window recorded under id.
func (s Session) Window(id string) (Window, bool) {
	for _, window := range s.Windows {
		if window.ID == id {
			return window.Value, true
		}
	}
	return Window{}, false
}

// CountTabs sums the tabs actually present across all windows.
func (s Session) CountTabs() uint {
	var counted uint
	for _, window := range s.Windows {
		counted += uint(len(window.Value.Tabs))
	}
	return counted
}

// SessionList is the top-level array of an export, in document order.
type SessionList []Session
