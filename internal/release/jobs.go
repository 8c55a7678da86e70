package release

import (
	"context"
	gosync "sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

// Dispatcher queues release requests and runs each as its own
// background task. Requests for the same master domain never overlap;
// a second request for a master already mid-release waits in the queue.
type Dispatcher struct {
	releaser *Releaser
	cron     *cron.Cron
	running  mapset.Set[string]

	mu      gosync.Mutex
	pending []Request
}

// NewDispatcher creates a Dispatcher over a Releaser.
func NewDispatcher(releaser *Releaser) *Dispatcher {
	return &Dispatcher{
		releaser: releaser,
		cron:     cron.New(),
		running:  mapset.NewSet[string](),
	}
}

// Enqueue adds a release request to the queue. The request runs on the
// next dispatch tick.
func (d *Dispatcher) Enqueue(req Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, req)
}

// Start begins dispatching queued requests.
func (d *Dispatcher) Start() {
	err := d.cron.AddFunc("@every 1s", d.dispatch)
	if err != nil {
		logrus.Errorf("failed to add dispatch task to cron: %v", err)
		panic(err)
	}
	d.cron.Start()
}

// Stop halts dispatching. In-flight release tasks run to completion.
func (d *Dispatcher) Stop() {
	logrus.Info("stopping release dispatcher")
	d.cron.Stop()
}

func (d *Dispatcher) dispatch() {
	d.mu.Lock()
	defer d.mu.Unlock()

	remaining := d.pending[:0]
	for _, req := range d.pending {
		if d.running.Contains(req.MasterDomain) {
			remaining = append(remaining, req)
			continue
		}
		d.running.Add(req.MasterDomain)
		go d.run(req)
	}
	d.pending = remaining
}

func (d *Dispatcher) run(req Request) {
	defer d.running.Remove(req.MasterDomain)

	manager := d.releaser.Run(context.Background(), req)
	logrus.WithFields(logrus.Fields{
		"master":        req.MasterDomain,
		"domains":       len(req.Domains),
		"error_domains": manager.ErrorDomainCount(),
	}).Info("release run finished")
}
