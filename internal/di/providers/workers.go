package providers

import (
	"github.com/samber/do/v2"

	"github.com/communalgrowth/docsub/internal/config"
	"github.com/communalgrowth/docsub/internal/ingest"
	"github.com/communalgrowth/docsub/internal/logger"
	"github.com/communalgrowth/docsub/internal/maildrop"
)

// ProvideDaemon provides the mail drop daemon feeding the front door.
// It does nothing until Run is called.
func ProvideDaemon(i do.Injector) (*maildrop.Daemon, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	frontDoor := do.MustInvoke[*ingest.FrontDoor](i)

	return maildrop.New(maildrop.Options{
		Root:    cfg.Daemon.SpoolPath,
		Workers: cfg.Daemon.Workers,
	}, frontDoor, log.Logger)
}
