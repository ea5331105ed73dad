package notify

import "log"

// Sink delivers driver-facing cues: a text notification, an audible cue and
// a vibration. All calls are fire-and-forget; failures are logged and never
// fatal to the caller.
type Sink interface {
	Notify(text string)
	PlayCue()
	StopCue()
	Vibrate()
}

// LogSink writes cues to the process log. It stands in where no device
// notification channel is attached.
type LogSink struct{}

func (LogSink) Notify(text string) { log.Printf("notify: %s", text) }
func (LogSink) PlayCue()           { log.Printf("notify: audio cue") }
func (LogSink) StopCue()           { log.Printf("notify: audio cue stopped") }
func (LogSink) Vibrate()           { log.Printf("notify: vibrate") }

// Fanout duplicates cues to several sinks.
type Fanout []Sink

func (f Fanout) Notify(text string) {
	for _, s := range f {
		s.Notify(text)
	}
}

func (f Fanout) PlayCue() {
	for _, s := range f {
		s.PlayCue()
	}
}

func (f Fanout) StopCue() {
	for _, s := range f {
		s.StopCue()
	}
}

func (f Fanout) Vibrate() {
	for _, s := range f {
		s.Vibrate()
	}
}
