package task

// Action tells the ingestor what to do with a worker event.
type Action int

const (
	// ActionIgnore drops a late or stale event without touching the store.
	ActionIgnore Action = iota
	// ActionApply writes Patch and then broadcasts the event.
	ActionApply
	// ActionForward broadcasts without writing.
	ActionForward
)

func (a Action) String() string {
	switch a {
	case ActionApply:
		return "apply"
	case ActionForward:
		return "forward"
	default:
		return "ignore"
	}
}

type Decision struct {
	Action Action
	Patch  Patch
	Reason string
}

// Decide applies the ingestion policy for ev against the stored task t.
//
// Side states may interrupt any live task. Once a task is paused, errored or
// stopped, pipeline events are accepted only after a retry or resume was
// requested. Done tasks accept nothing. A pipeline event older than the
// stored stage is treated as a stale duplicate. Progression events are never
// stored.
func Decide(t *Task, ev *Event) Decision {
	if t.Status == StatusDone || (t.Status.IsTerminal() && !t.AwaitingResume) {
		return ignore("task is " + t.Status.String())
	}
	phase := t.Phase()
	switch {
	case ev.Event.IsInterruption():
		return apply(withFiles(Patch{Status: Ptr(ev.Event)}, ev))
	case phase.Interrupted() && !t.AwaitingResume:
		return ignore("task is " + phase.Interruption.String() + " and no resume was requested")
	case ev.Event.IsProgression():
		return decideProgression(t, phase)
	}
	if t.AwaitingResume {
		p := withFiles(StatusPatch(ev.Event), ev)
		p.AwaitingResume = Ptr(false)
		return apply(p)
	}
	if ev.Event.Order() < phase.Stage.Order() {
		return ignore("stage " + ev.Event.String() + " is behind " + phase.Stage.String())
	}
	return apply(withFiles(StatusPatch(ev.Event), ev))
}

func decideProgression(t *Task, phase Phase) Decision {
	if phase.Stage.Order() > StatusSendingToLLM.Order() && !t.AwaitingResume {
		return ignore("progression after " + phase.Stage.String())
	}
	return Decision{Action: ActionForward}
}

func withFiles(p Patch, ev *Event) Patch {
	p.FileCleaned = ev.FileCleaned
	p.FileAnalysed = ev.FileAnalysed
	return p
}

func apply(p Patch) Decision {
	return Decision{Action: ActionApply, Patch: p}
}

func ignore(reason string) Decision {
	return Decision{Action: ActionIgnore, Reason: reason}
}
