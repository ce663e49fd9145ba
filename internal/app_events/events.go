// Package appevents defines the event types exchanged between the TUI
// and the role app controllers.
package appevents

// AppEvent is a marker interface for events sent from the TUI to an
// app controller. The unexported method limits implementations to types
// embedding Event, giving compile-time safety.
type AppEvent interface {
	isAppEvent()
}

// Event is embedded by concrete event types to satisfy AppEvent.
type Event struct{}

func (Event) isAppEvent() {}

// UIErrorEvent reports an error raised inside the TUI to the app.
type UIErrorEvent struct {
	Event
	Err error
}

// AppErrorMsg reports an app-side error to the TUI.
type AppErrorMsg struct {
	Err error
}
