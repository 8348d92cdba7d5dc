package service

import (
	"sync"

	"github.com/pkg/errors"
)

// Fake is an in-memory Manager for tests. Start and Stop take effect
// after StartDelay status queries, emulating a slow service.
type Fake struct {
	mu         sync.Mutex
	services   map[string]*fakeService
	StartDelay int
	Calls      []string
}

type fakeService struct {
	cfg     Config
	status  Status
	pending Status
	delay   int
	hung    bool
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{services: make(map[string]*fakeService)}
}

// Config returns the registration of name.
func (f *Fake) Config(name string) (Config, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.services[name]
	if !ok {
		return Config{}, false
	}
	return s.cfg, true
}

func (f *Fake) record(call string) {
	f.Calls = append(f.Calls, call)
}

// Exists satisfies Manager.
func (f *Fake) Exists(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.services[name]
	return ok, nil
}

// Install satisfies Manager.
func (f *Fake) Install(cfg Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("install " + cfg.Name)
	if _, ok := f.services[cfg.Name]; ok {
		return errors.Errorf("service %s already exists", cfg.Name)
	}
	f.services[cfg.Name] = &fakeService{cfg: cfg, status: StatusStopped, pending: StatusStopped}
	return nil
}

// Uninstall satisfies Manager.
func (f *Fake) Uninstall(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("uninstall " + name)
	if _, ok := f.services[name]; !ok {
		return errors.Errorf("service %s is not installed", name)
	}
	delete(f.services, name)
	return nil
}

// Start satisfies Manager.
func (f *Fake) Start(name string) error {
	return f.transition("start", name, StatusRunning)
}

// Stop satisfies Manager.
func (f *Fake) Stop(name string) error {
	return f.transition("stop", name, StatusStopped)
}

func (f *Fake) transition(call, name string, to Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call + " " + name)
	s, ok := f.services[name]
	if !ok {
		return errors.Errorf("service %s is not installed", name)
	}
	s.pending = to
	s.delay = f.StartDelay
	if s.delay == 0 && !s.hung {
		s.status = to
	}
	return nil
}

// Status satisfies Manager.
func (f *Fake) Status(name string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.services[name]
	if !ok {
		return StatusNotInstalled, nil
	}
	if s.status != s.pending && !s.hung {
		if s.delay > 0 {
			s.delay--
		}
		if s.delay == 0 {
			s.status = s.pending
		}
	}
	return s.status, nil
}

// SetStartType satisfies Manager.
func (f *Fake) SetStartType(name string, startType StartType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("starttype " + name + " " + string(startType))
	s, ok := f.services[name]
	if !ok {
		return errors.Errorf("service %s is not installed", name)
	}
	s.cfg.StartType = startType
	return nil
}

// Hang makes name never leave its current status.
func (f *Fake) Hang(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.services[name]; ok {
		s.hung = true
	}
}
