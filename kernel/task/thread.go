package task

import "kestrel/kernel/trap"

// CreateThread starts a new thread of p at entry with arg in a0 and returns
// its tid.
func (p *Process) CreateThread(entry, arg uint64) (int, error) {
	k := p.k
	pinner := p.inner.Borrow()
	main := pinner.tasks[0]
	base := main.UserRes().UstackBase()
	t, err := k.newTask(p, pinner, base, true)
	p.inner.Release()
	if err != nil {
		return 0, err
	}
	res := t.UserRes()
	cx := trap.AppInitContext(entry, res.UstackTop(), k.kernelToken(), t.kstack.Top(), trap.HandlerAddr)
	cx.X[10] = arg
	t.SetTrapContext(cx)
	k.addTask(t)
	return t.tid, nil
}

// WaitTid reaps the exited thread tid of cur's process and returns its exit
// code. It returns ErrStillRunning while the thread runs.
func (cur *Task) WaitTid(tid int) (int32, error) {
	if tid == cur.tid {
		return 0, ErrWaitSelf
	}
	p := cur.process
	pinner := p.inner.Borrow()
	defer p.inner.Release()
	if tid < 0 || tid >= len(pinner.tasks) || pinner.tasks[tid] == nil {
		return 0, ErrNoThread
	}
	t := pinner.tasks[tid]
	code, exited := t.ExitCode()
	if !exited {
		return 0, ErrStillRunning
	}
	pinner.tasks[tid] = nil
	t.release(pinner)
	return code, nil
}
