package verification

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/notify"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/workflow"
)

// Deps groups external dependencies needed by the verification module.
// RDB, Mailer, Push and Proofs are optional; the matching side effect is
// skipped when absent.
type Deps struct {
	DB       *repo.DB
	RDB      *redis.Client
	Logger   *slog.Logger
	Registry prometheus.Registerer
	Config   Config

	Mailer *notify.Mailer
	Push   *notify.PushSender
	Proofs workflow.ProofStore

	module *moduleState
}

// Validate ensures required dependencies are provided.
func (d *Deps) Validate() error {
	if d == nil {
		return errors.New("verification deps are nil")
	}
	if d.DB == nil {
		return errors.New("verification deps: DB is required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return nil
}
