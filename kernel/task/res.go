package task

import (
	"fmt"

	"kestrel/kernel/mm"
)

// PidHandle is an allocated process id.
type PidHandle struct {
	pid int
}

func (h PidHandle) Value() int { return h.pid }

func (k *Kernel) allocPid() PidHandle {
	r := k.res.Borrow()
	defer k.res.Release()
	return PidHandle{pid: r.pids.Alloc()}
}

func (k *Kernel) releasePid(h PidHandle) {
	r := k.res.Borrow()
	defer k.res.Release()
	r.pids.Dealloc(h.pid)
}

// KernelStack is a mapped kernel-stack slot.
type KernelStack struct {
	id int
}

func (k *Kernel) allocKernelStack() (*KernelStack, error) {
	r := k.res.Borrow()
	defer k.res.Release()
	id := r.kstacks.Alloc()
	bottom, top := mm.KernelStackPosition(id)
	if err := r.space.InsertFramedArea(bottom, top, mm.PermR|mm.PermW); err != nil {
		r.kstacks.Dealloc(id)
		return nil, fmt.Errorf("task: kernel stack %d: %w", id, err)
	}
	return &KernelStack{id: id}, nil
}

// releaseKernelStack unmaps the slot and frees its id. Releasing twice panics.
func (k *Kernel) releaseKernelStack(s *KernelStack) {
	r := k.res.Borrow()
	defer k.res.Release()
	bottom, _ := mm.KernelStackPosition(s.id)
	r.space.RemoveAreaWithStartVPN(mm.VPNFloor(bottom))
	r.kstacks.Dealloc(s.id)
}

func (s *KernelStack) ID() int { return s.id }

func (s *KernelStack) Top() uint64 {
	_, top := mm.KernelStackPosition(s.id)
	return top
}

// TaskUserRes is a thread's user-space footprint: its tid, user stack and
// trap-context page.
type TaskUserRes struct {
	tid        int
	ustackBase uint64
	mapped     bool
}

func (r TaskUserRes) Tid() int             { return r.tid }
func (r TaskUserRes) UstackBase() uint64   { return r.ustackBase }
func (r TaskUserRes) UstackTop() uint64    { return mm.UserStackTop(r.ustackBase, r.tid) }
func (r TaskUserRes) TrapCxUserVA() uint64 { return mm.TrapContextAddr(r.tid) }

func (r *TaskUserRes) allocUserRes(space *mm.MemorySet) error {
	bottom := mm.UserStackBottom(r.ustackBase, r.tid)
	if err := space.InsertFramedArea(bottom, bottom+mm.UserStackSize, mm.PermR|mm.PermW|mm.PermU); err != nil {
		return fmt.Errorf("task: user stack of tid %d: %w", r.tid, err)
	}
	cx := r.TrapCxUserVA()
	if err := space.InsertFramedArea(cx, cx+mm.PageSize, mm.PermR|mm.PermW); err != nil {
		space.RemoveAreaWithStartVPN(mm.VPNFloor(bottom))
		return fmt.Errorf("task: trap context of tid %d: %w", r.tid, err)
	}
	r.mapped = true
	return nil
}

func (r *TaskUserRes) deallocUserRes(space *mm.MemorySet) {
	if !r.mapped {
		return
	}
	r.mapped = false
	space.RemoveAreaWithStartVPN(mm.VPNFloor(mm.UserStackBottom(r.ustackBase, r.tid)))
	space.RemoveAreaWithStartVPN(mm.VPNFloor(r.TrapCxUserVA()))
}

func (r *TaskUserRes) trapCxPPN(space *mm.MemorySet) (mm.PPN, error) {
	pte, ok := space.Translate(mm.VPNFloor(r.TrapCxUserVA()))
	if !ok {
		return 0, fmt.Errorf("task: trap context of tid %d not mapped", r.tid)
	}
	return pte.PPN, nil
}
