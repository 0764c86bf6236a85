package task

import "fmt"

// WaitPid reaps a zombie child of p. pid -1 matches any child.
//
// It returns ErrNoChild when no child matches and ErrStillRunning when
// matching children exist but none has exited yet.
func (p *Process) WaitPid(pid int) (int, int32, error) {
	inner := p.inner.Borrow()
	found := -1
	for i, child := range inner.children {
		if pid != -1 && child.Pid() != pid {
			continue
		}
		if found < 0 {
			found = i
		}
		if child.IsZombie() {
			found = i
			break
		}
	}
	if found < 0 {
		p.inner.Release()
		return 0, 0, ErrNoChild
	}
	child := inner.children[found]
	if !child.IsZombie() {
		p.inner.Release()
		return 0, 0, ErrStillRunning
	}
	inner.children = append(inner.children[:found], inner.children[found+1:]...)
	p.inner.Release()

	if n := child.Refs(); n != 1 {
		panic(fmt.Sprintf("task: reaping pid %d with %d owners", child.Pid(), n))
	}
	cinner := child.inner.Borrow()
	code := cinner.exitCode
	child.inner.Release()
	childPid := child.Pid()
	child.put()
	return childPid, code, nil
}
