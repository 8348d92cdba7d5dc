package service

import (
	"sync"

	kservice "github.com/kardianos/service"
	"github.com/pkg/errors"

	apperrors "EWI/internal/errors"
	"EWI/internal/logger"
)

// program satisfies service.Interface for control-only use. The installer
// never runs as the service itself.
type program struct{}

func (program) Start(kservice.Service) error { return nil }
func (program) Stop(kservice.Service) error  { return nil }

// KardianosManager implements Manager with github.com/kardianos/service.
type KardianosManager struct {
	log     logger.Logger
	mu      sync.Mutex
	configs map[string]Config
}

// NewKardianosManager creates a manager backed by the OS service control manager.
func NewKardianosManager(log logger.Logger) *KardianosManager {
	if log == nil {
		log = logger.Discard()
	}
	return &KardianosManager{log: log, configs: make(map[string]Config)}
}

func toServiceConfig(cfg Config) *kservice.Config {
	sc := &kservice.Config{
		Name:             cfg.Name,
		DisplayName:      cfg.DisplayName,
		Description:      cfg.Description,
		Executable:       cfg.Executable,
		Arguments:        cfg.Arguments,
		WorkingDirectory: cfg.WorkingDirectory,
		UserName:         cfg.UserName,
		Option:           make(kservice.KeyValue),
		EnvVars:          make(map[string]string),
	}
	for k, v := range cfg.EnvVars {
		sc.EnvVars[k] = v
	}
	if cfg.Password != "" {
		sc.Option["Password"] = cfg.Password
	}
	if cfg.StartType != "" {
		sc.Option["StartType"] = string(cfg.StartType)
	}
	sc.Option["OnFailure"] = "restart"
	return sc
}

func (k *KardianosManager) handle(name string) (kservice.Service, error) {
	k.mu.Lock()
	cfg, ok := k.configs[name]
	k.mu.Unlock()
	if !ok {
		cfg = Config{Name: name}
	}
	return kservice.New(program{}, toServiceConfig(cfg))
}

// Exists satisfies Manager.
func (k *KardianosManager) Exists(name string) (bool, error) {
	status, err := k.Status(name)
	if err != nil {
		return false, err
	}
	return status != StatusNotInstalled, nil
}

// Install satisfies Manager.
func (k *KardianosManager) Install(cfg Config) error {
	s, err := kservice.New(program{}, toServiceConfig(cfg))
	if err != nil {
		return k.failure("service.Install", cfg.Name, err)
	}
	if err := s.Install(); err != nil {
		return k.failure("service.Install", cfg.Name, err)
	}

	k.mu.Lock()
	k.configs[cfg.Name] = cfg
	k.mu.Unlock()

	k.log.Info("Installed service %s", cfg.Name)
	return nil
}

// Uninstall satisfies Manager.
func (k *KardianosManager) Uninstall(name string) error {
	s, err := k.handle(name)
	if err != nil {
		return k.failure("service.Uninstall", name, err)
	}
	if err := s.Uninstall(); err != nil {
		return k.failure("service.Uninstall", name, err)
	}

	k.mu.Lock()
	delete(k.configs, name)
	k.mu.Unlock()

	k.log.Info("Uninstalled service %s", name)
	return nil
}

// Start satisfies Manager.
func (k *KardianosManager) Start(name string) error {
	s, err := k.handle(name)
	if err != nil {
		return k.failure("service.Start", name, err)
	}
	return k.wrap("service.Start", name, s.Start())
}

// Stop satisfies Manager.
func (k *KardianosManager) Stop(name string) error {
	s, err := k.handle(name)
	if err != nil {
		return k.failure("service.Stop", name, err)
	}
	return k.wrap("service.Stop", name, s.Stop())
}

// Status satisfies Manager.
func (k *KardianosManager) Status(name string) (Status, error) {
	s, err := k.handle(name)
	if err != nil {
		return StatusUnknown, k.failure("service.Status", name, err)
	}

	status, err := s.Status()
	if errors.Is(err, kservice.ErrNotInstalled) {
		return StatusNotInstalled, nil
	}
	if err != nil {
		return StatusUnknown, k.failure("service.Status", name, err)
	}

	switch status {
	case kservice.StatusRunning:
		return StatusRunning, nil
	case kservice.StatusStopped:
		return StatusStopped, nil
	default:
		return StatusUnknown, nil
	}
}

// SetStartType re-registers a service installed by this manager with a new
// start type, the only way the control library exposes it.
func (k *KardianosManager) SetStartType(name string, startType StartType) error {
	k.mu.Lock()
	cfg, ok := k.configs[name]
	k.mu.Unlock()
	if !ok {
		return k.failure("service.SetStartType", name, errors.New("service was not installed in this session"))
	}
	if cfg.StartType == startType {
		return nil
	}

	if err := k.Uninstall(name); err != nil {
		return err
	}
	cfg.StartType = startType
	return k.Install(cfg)
}

func (k *KardianosManager) wrap(operation, name string, err error) error {
	if err == nil {
		return nil
	}
	return k.failure(operation, name, err)
}

func (k *KardianosManager) failure(operation, name string, err error) error {
	return apperrors.ServiceError(apperrors.CodeServiceControl, "service "+name+" control failed", err).
		WithModule("service").
		WithOperation(operation).
		WithField("service", name)
}
