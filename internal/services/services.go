package services

import (
	"github.com/sirupsen/logrus"

	"github.com/naduri/naduri-backend/internal/config"
	"github.com/naduri/naduri-backend/internal/llm"
	"github.com/naduri/naduri-backend/internal/lock"
	"github.com/naduri/naduri-backend/internal/providers"
	"github.com/naduri/naduri-backend/internal/repository"
	"github.com/naduri/naduri-backend/internal/storage"
)

// Services holds all service instances
type Services struct {
	Sessions     *SessionService
	Ledger       *Ledger
	Orchestrator *Orchestrator
	Finalizer    *Finalizer
	Exporter     *Exporter
	Health       *HealthChecker
	Audio        *storage.AudioStore
}

// Dependencies are the infrastructure pieces the services are built from
type Dependencies struct {
	SessionRepo   repository.SessionRepository
	TurnRepo      repository.TurnRepository
	Locker        lock.Locker
	Audio         *storage.AudioStore
	Collaborators providers.Collaborators
	Metrics       *llm.MetricsCollector
	Logger        *logrus.Logger

	// Optional health probes
	DB      Pinger
	Breaker *llm.CircuitBreaker
}

// NewServices creates all service instances
func NewServices(cfg *config.Config, deps Dependencies) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	locker := deps.Locker
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}

	sessions := NewSessionService(deps.SessionRepo, logger)
	ledger := NewLedger(deps.TurnRepo, locker, deps.Metrics, logger)
	timeout := cfg.Providers.Timeout

	return &Services{
		Sessions:     sessions,
		Ledger:       ledger,
		Orchestrator: NewOrchestrator(sessions, ledger, deps.Audio, deps.Collaborators, cfg.Conversation, timeout, deps.Metrics, logger),
		Finalizer:    NewFinalizer(sessions, ledger, deps.Collaborators.Reporter, timeout, deps.Metrics, logger),
		Exporter:     NewExporter(sessions, ledger),
		Health:       NewHealthChecker(deps.DB, deps.Breaker),
		Audio:        deps.Audio,
	}
}
