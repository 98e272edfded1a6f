package client

import "sync"

// enqueueFunc hands job to queue. It returns false if the job was not queued.
type enqueueFunc func(queue chan<- func(), job func()) bool

// lanes runs jobs on a fixed set of workers. Jobs with the same key always
// run on the same worker, in the order they were submitted.
type lanes struct {
	queues []chan func()
	wg     sync.WaitGroup
}

func newLanes(workers, depth int) *lanes {
	if workers < 1 {
		workers = 1
	}

	l := &lanes{queues: make([]chan func(), workers)}

	for i := range l.queues {
		queue := make(chan func(), depth)
		l.queues[i] = queue

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()

			for job := range queue {
				job()
			}
		}()
	}

	return l
}

// submitWith queues job on the lane for key.
func (l *lanes) submitWith(enqueue enqueueFunc, key int, job func()) bool {
	lane := key % len(l.queues)
	if lane < 0 {
		lane = -lane
	}

	return enqueue(l.queues[lane], job)
}

// drainWith waits for every job submitted so far to finish.
func (l *lanes) drainWith(enqueue enqueueFunc) bool {
	var wg sync.WaitGroup

	for _, queue := range l.queues {
		wg.Add(1)
		if !enqueue(queue, wg.Done) {
			return false
		}
	}

	wg.Wait()
	return true
}

// stop waits for every queued job to finish. submitWith must not be called
// afterwards.
func (l *lanes) stop() {
	for _, queue := range l.queues {
		close(queue)
	}

	l.wg.Wait()
}
