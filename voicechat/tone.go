package voicechat

// CuePlayer plays the server-driven audio test cue. Implementations wrap
// whatever audio output the host application has; the noop player is used
// when none is supplied.
type CuePlayer interface {
	Start()
	Stop()
	Playing() bool
}

type noopCue struct{}

func (noopCue) Start()        {}
func (noopCue) Stop()         {}
func (noopCue) Playing() bool { return false }
