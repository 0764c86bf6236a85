package task

import "runtime"

// TaskContext is the saved kernel-mode flow of a task.
//
// Every task runs on its own goroutine. A flow that is not running is parked
// on its wake channel; resuming it hands it the processor. The idle flow is
// the goroutine that called Kernel.Run.
type TaskContext struct {
	wake    chan bool
	started bool
	entry   func()
}

// gotoTaskStart returns a context that, on first resume, runs entry on a new goroutine.
func gotoTaskStart(entry func()) TaskContext {
	return TaskContext{wake: make(chan bool, 1), entry: entry}
}

// zeroInit is the idle flow's context: it is already running.
func zeroInit() TaskContext {
	return TaskContext{wake: make(chan bool, 1), started: true}
}

func (cx *TaskContext) resume() {
	if !cx.started {
		cx.started = true
		go cx.entry()
		return
	}
	cx.wake <- true
}

func (cx *TaskContext) park() {
	if !<-cx.wake {
		runtime.Goexit()
	}
}

// terminate ends a parked flow that will never be resumed.
func (cx *TaskContext) terminate() {
	if !cx.started {
		return
	}
	select {
	case cx.wake <- false:
	default:
	}
}

// switchTo saves the calling flow in cur and resumes next. It returns when
// some other flow resumes cur.
func switchTo(cur, next *TaskContext) {
	next.resume()
	cur.park()
}

// exitTo resumes next and ends the calling flow.
func exitTo(next *TaskContext) {
	next.resume()
	runtime.Goexit()
}
