package cli

import (
	"github.com/roach88/stacktower/internal/config"
	"github.com/roach88/stacktower/internal/session"
	"github.com/roach88/stacktower/internal/store"
)

// hostDeps is what every store-backed command opens.
type hostDeps struct {
	server config.Server
	tuning config.Tuning
	store  *store.Store
	issuer *session.Issuer
}

// openHost loads settings from the environment and opens the database.
// db overrides STACKTOWER_DB when set. The caller closes deps.store.
func openHost(opts *RootOptions, db string) (*hostDeps, error) {
	srv, err := config.LoadServer()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid server settings", err)
	}
	if db != "" {
		srv.DBPath = db
	}

	tuning, err := config.LoadTuning(opts.tuningPath(srv.TuningPath))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid tuning", err)
	}

	issuer, err := session.NewIssuer([]byte(srv.TokenSecret), session.WithTTL(srv.TokenTTL))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid session settings", err)
	}

	st, err := store.Open(srv.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return &hostDeps{server: srv, tuning: tuning, store: st, issuer: issuer}, nil
}
