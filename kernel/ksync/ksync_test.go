package ksync_test

import (
	"errors"
	"testing"
	"time"

	"kestrel/kernel/ksync"
	"kestrel/kernel/task"
	"kestrel/kernel/task/tasktest"
)

// joinAll waits for tids the way user code does: waittid and yield.
func joinAll(h *tasktest.Harness, tk *task.Task, tids []int) {
	for _, tid := range tids {
		for {
			if _, err := tk.WaitTid(tid); !errors.Is(err, task.ErrStillRunning) {
				break
			}
			h.K.SuspendCurrentAndRunNext()
		}
	}
}

func TestBlockingMutexIsFIFO(t *testing.T) {
	h := tasktest.New(t)
	var order []uint64
	h.Spawn(t, func(tk *task.Task, _ uint64) {
		p := tk.Process()
		m := ksync.NewMutexBlocking(h.K)
		var tids []int
		for i := uint64(1); i <= 5; i++ {
			tid, _ := h.Thread(p, func(_ *task.Task, id uint64) {
				m.Lock()
				h.Yield(2)
				order = append(order, id)
				m.Unlock()
			}, i)
			tids = append(tids, tid)
		}
		joinAll(h, tk, tids)
	})
	h.RunToExit(t)
	for i, id := range order {
		if id != uint64(i+1) {
			t.Fatalf("acquisition order = %v; want 1..5", order)
		}
	}
	if len(order) != 5 {
		t.Fatalf("acquisitions = %d; want 5", len(order))
	}
}

func TestMutexesExclude(t *testing.T) {
	for _, tc := range []struct {
		name string
		new  func(*task.Kernel) task.Mutex
	}{
		{"spin", func(k *task.Kernel) task.Mutex { return ksync.NewMutexSpin(k) }},
		{"blocking", func(k *task.Kernel) task.Mutex { return ksync.NewMutexBlocking(k) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := tasktest.New(t)
			var inside, maxInside, total int
			h.Spawn(t, func(tk *task.Task, _ uint64) {
				m := tc.new(h.K)
				var tids []int
				for i := 0; i < 4; i++ {
					tid, _ := h.Thread(tk.Process(), func(*task.Task, uint64) {
						for j := 0; j < 3; j++ {
							m.Lock()
							inside++
							if inside > maxInside {
								maxInside = inside
							}
							h.Yield(1)
							total++
							inside--
							m.Unlock()
							h.Yield(1)
						}
					}, 0)
					tids = append(tids, tid)
				}
				joinAll(h, tk, tids)
			})
			h.RunToExit(t)
			if maxInside != 1 || total != 12 {
				t.Fatalf("max holders = %d, total = %d; want 1, 12", maxInside, total)
			}
		})
	}
}

func TestSemaphoreNeverOverdrawn(t *testing.T) {
	h := tasktest.New(t)
	var ups, downs, initial = 0, 0, 2
	violated := false
	h.Spawn(t, func(tk *task.Task, _ uint64) {
		p := tk.Process()
		s := ksync.NewSemaphore(h.K, initial)
		var tids []int
		for i := 0; i < 4; i++ {
			tid, _ := h.Thread(p, func(*task.Task, uint64) {
				for j := 0; j < 3; j++ {
					s.Down()
					downs++
					if downs > ups+initial {
						violated = true
					}
				}
			}, 0)
			tids = append(tids, tid)
		}
		producer, _ := h.Thread(p, func(*task.Task, uint64) {
			for j := 0; j < 10; j++ {
				h.Yield(1)
				ups++
				s.Up()
			}
		}, 0)
		joinAll(h, tk, append(tids, producer))
		if c := s.Count(); c != 0 {
			t.Errorf("final count = %d; want 0", c)
		}
	})
	h.RunToExit(t)
	if violated {
		t.Fatal("a down completed without a matching up")
	}
	if downs != 12 || ups != 10 {
		t.Fatalf("downs = %d, ups = %d; want 12, 10", downs, ups)
	}
}

func TestCondvarHandsOff(t *testing.T) {
	h := tasktest.New(t)
	var got []int
	h.Spawn(t, func(tk *task.Task, _ uint64) {
		p := tk.Process()
		m := ksync.NewMutexBlocking(h.K)
		cv := ksync.NewCondvar(h.K)
		var queue []int
		consumer, _ := h.Thread(p, func(*task.Task, uint64) {
			m.Lock()
			for len(got) < 3 {
				for len(queue) == 0 {
					cv.Wait(m)
				}
				got = append(got, queue[0])
				queue = queue[1:]
			}
			m.Unlock()
		}, 0)
		producer, _ := h.Thread(p, func(*task.Task, uint64) {
			for i := 1; i <= 3; i++ {
				h.Yield(2)
				m.Lock()
				queue = append(queue, i)
				cv.Signal()
				m.Unlock()
			}
		}, 0)
		joinAll(h, tk, []int{consumer, producer})
	})
	h.RunToExit(t)
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("consumed = %v; want [1 2 3]", got)
	}
}

func TestUnlockOfUnlockedMutexHalts(t *testing.T) {
	h := tasktest.New(t)
	h.Spawn(t, func(*task.Task, uint64) {
		ksync.NewMutexBlocking(h.K).Unlock()
	})
	var he *task.HaltError
	if err := h.Run(t, 10*time.Second); !errors.As(err, &he) || he.RootExited {
		t.Fatalf("Run = %v; want a fatal halt", err)
	}
}
