// Package sched implements the cooperative scheduler spec.md §2/§5 treats as
// an external collaborator: a tick-driven loop that runs every Task whose
// Notified() is true, and paces the idle spin otherwise so a core shared
// with other work is not monopolized by polling.
package sched

import (
	"context"

	"golang.org/x/time/rate"
)

// Task is anything the loop can drive a step of. Notified reports whether
// the task has pending work; Run executes one non-blocking step of it.
// asyncfs.Driver satisfies this.
type Task interface {
	Run()
	Notified() bool
}

// Loop repeatedly ticks its tasks, exactly the way spec.md §2 describes the
// scheduler calling the async driver: "ticks Driver.Run when
// Driver.Notified() is true".
type Loop struct {
	tasks []Task
	idle  *rate.Limiter
}

// NewLoop builds a Loop over tasks, pacing idle spins (no task notified) to
// at most idleRate ticks per second, bursting up to idleBurst.
func NewLoop(idleRate rate.Limit, idleBurst int, tasks ...Task) *Loop {
	return &Loop{tasks: append([]Task(nil), tasks...), idle: rate.NewLimiter(idleRate, idleBurst)}
}

// AddTask registers an additional task with the loop.
func (l *Loop) AddTask(t Task) { l.tasks = append(l.tasks, t) }

// Tick runs one non-blocking pass over every task, returning whether any
// task had pending work.
func (l *Loop) Tick() bool {
	ran := false
	for _, t := range l.tasks {
		if t.Notified() {
			t.Run()
			ran = true
		}
	}
	return ran
}

// Run drives Tick until ctx is cancelled, consulting the idle limiter
// whenever a pass found no pending work so the loop does not busy-spin.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !l.Tick() {
			if err := l.idle.Wait(ctx); err != nil {
				return err
			}
		}
	}
}
