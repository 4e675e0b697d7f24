package speech

// RecognitionOptions configures one push-to-talk recognition session.
type RecognitionOptions struct {
	Locale          string
	InterimResults  bool
	MaxAlternatives int
}

// RecognitionEventType enumerates what a recognition session can report.
type RecognitionEventType int

const (
	// RecognitionResult carries a final transcript.
	RecognitionResult RecognitionEventType = iota + 1
	// RecognitionError reports a capture or recognition failure.
	RecognitionError
	// RecognitionEnd is always the last event of a session.
	RecognitionEnd
)

func (t RecognitionEventType) String() string {
	switch t {
	case RecognitionResult:
		return "result"
	case RecognitionError:
		return "error"
	case RecognitionEnd:
		return "end"
	default:
		return "unknown"
	}
}

// RecognitionEvent is emitted by a recognition session.
type RecognitionEvent struct {
	Type       RecognitionEventType
	Transcript string
	Err        error
}

// RecognitionSession is one active capture. Events is closed after RecognitionEnd.
type RecognitionSession interface {
	Events() <-chan RecognitionEvent
	Stop()
}
