package backend

import (
	"runtime"
	"sync"
)

// Dispatcher funnels engine calls onto a single locked OS thread. Accelerator
// runtimes generally require that all compute calls come from one thread;
// the evaluation loop itself runs on whatever goroutine the caller chose, so
// every engine call is shipped here and waited on synchronously.
type Dispatcher struct {
	calls chan dispatched
	once  sync.Once
}

type dispatched struct {
	fn   func()
	done chan struct{}
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{calls: make(chan dispatched)}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for c := range d.calls {
		c.fn()
		close(c.done)
	}
}

// Do runs fn on the dispatcher thread and blocks until it returns.
func (d *Dispatcher) Do(fn func()) {
	c := dispatched{fn: fn, done: make(chan struct{})}
	d.calls <- c
	<-c.done
}

// Close stops the dispatcher thread. Pending Do calls complete first.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.calls) })
}

// Serialize wraps eng so that every call executes on d's thread.
func Serialize(eng Engine, d *Dispatcher) Engine {
	return &serialized{eng: eng, d: d}
}

type serialized struct {
	eng Engine
	d   *Dispatcher
}

func (s *serialized) VocabSize() int {
	var n int
	s.d.Do(func() { n = s.eng.VocabSize() })
	return n
}

func (s *serialized) Tokenize(text string, addLeadingMarker bool) ([]int, error) {
	var (
		ids []int
		err error
	)
	s.d.Do(func() { ids, err = s.eng.Tokenize(text, addLeadingMarker) })
	return ids, err
}

func (s *serialized) SubmitBatch(tokens []int, positions []int, wantLogitsForLast bool) error {
	var err error
	s.d.Do(func() { err = s.eng.SubmitBatch(tokens, positions, wantLogitsForLast) })
	return err
}

func (s *serialized) Logits(lastBatchPosition int) []float32 {
	var v []float32
	s.d.Do(func() { v = s.eng.Logits(lastBatchPosition) })
	return v
}

func (s *serialized) Piece(tokenID int) []byte {
	var b []byte
	s.d.Do(func() { b = s.eng.Piece(tokenID) })
	return b
}

func (s *serialized) IsEndOfGeneration(tokenID int) bool {
	var eog bool
	s.d.Do(func() { eog = s.eng.IsEndOfGeneration(tokenID) })
	return eog
}

func (s *serialized) ClearCache(force bool) {
	s.d.Do(func() { s.eng.ClearCache(force) })
}

func (s *serialized) Free() {
	s.d.Do(func() { s.eng.Free() })
}
