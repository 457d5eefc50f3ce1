// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import "container/list"

// ConcurrentQueue is a concurrency-safe FIFO queue of unbounded
// capacity. Callers push items onto the in channel and pop them from
// the out channel; a goroutine started by Start moves items from one
// to the other in order.
type ConcurrentQueue struct {
	chanIn   chan interface{}
	chanOut  chan interface{}
	quit     chan struct{}
	overflow *list.List
}

// NewConcurrentQueue constructs a ConcurrentQueue. bufferSize is the
// output channel's capacity; while the queue holds fewer items than
// that, pushes avoid the overflow list's extra bookkeeping entirely.
func NewConcurrentQueue(bufferSize int) *ConcurrentQueue {
	return &ConcurrentQueue{
		chanIn:   make(chan interface{}),
		chanOut:  make(chan interface{}, bufferSize),
		quit:     make(chan struct{}),
		overflow: list.New(),
	}
}

// ChanIn returns the channel used to push new items onto the queue.
func (cq *ConcurrentQueue) ChanIn() chan<- interface{} {
	return cq.chanIn
}

// ChanOut returns the channel used to pop items off the queue.
func (cq *ConcurrentQueue) ChanOut() <-chan interface{} {
	return cq.chanOut
}

// Start begins the goroutine that moves items from the in channel to
// the out channel. It tries to move items straight to the out channel
// with as little overhead as possible, falling back to the overflow
// list when the out channel is full. Must be called before the queue
// is used.
func (cq *ConcurrentQueue) Start() {
	go func() {
		for {
			nextElement := cq.overflow.Front()
			if nextElement == nil {
				// The overflow list is empty, so an incoming item can
				// go straight to the output channel — unless that
				// channel is full, in which case it goes to overflow.
				select {
				case item := <-cq.chanIn:
					select {
					case cq.chanOut <- item:
					case <-cq.quit:
						return
					default:
						cq.overflow.PushBack(item)
					}
				case <-cq.quit:
					return
				}
			} else {
				// The overflow list is non-empty, so new items are
				// pushed to its back to preserve order.
				select {
				case item := <-cq.chanIn:
					cq.overflow.PushBack(item)
				case cq.chanOut <- nextElement.Value:
					cq.overflow.Remove(nextElement)
				case <-cq.quit:
					return
				}
			}
		}
	}()
}

// Stop ends the goroutine moving items from the in channel to the out
// channel.
func (cq *ConcurrentQueue) Stop() {
	close(cq.quit)
}
