package cli

import (
	"context"
	"io"

	"workout/backend/internal/catalog"
	"workout/backend/internal/clock"
	"workout/backend/internal/db"
	apperrors "workout/backend/internal/errors"
	"workout/backend/internal/handle"
	"workout/backend/internal/logging"
	"workout/backend/internal/repository"
	"workout/backend/internal/service"
)

// openService recovers the open session from the store named by opts. The
// returned close func releases the controller and the database.
func openService(ctx context.Context, opts *RootOptions, stderr io.Writer) (*service.WorkoutService, func(), error) {
	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	logger := logging.New(level, "text", stderr)

	database, err := db.OpenSQLite(opts.DBPath)
	if err != nil {
		return nil, nil, &ExitError{Code: ExitCommandError, Message: "open database", Err: err}
	}
	if err := db.RunMigrations(database, opts.MigrationsDir); err != nil {
		_ = database.Close()
		return nil, nil, &ExitError{Code: ExitCommandError, Message: "run migrations", Err: err}
	}
	cat, err := catalog.Load(opts.CatalogPath)
	if err != nil {
		_ = database.Close()
		return nil, nil, &ExitError{Code: ExitCommandError, Message: "load catalog", Err: err}
	}

	svc := service.NewWorkoutService(
		repository.NewWorkoutRepository(database),
		handle.NewFileHandle(opts.HandlePath),
		cat,
		clock.System{},
		logger,
	)
	closeAll := func() {
		svc.Close()
		_ = database.Close()
	}
	if err := svc.Recover(ctx); err != nil {
		closeAll()
		return nil, nil, &ExitError{Code: ExitCommandError, Message: "recover session", Err: err}
	}
	return svc, closeAll, nil
}

func rejected(apiErr *apperrors.APIError) error {
	return &ExitError{Code: ExitRejected, Message: apiErr.Code, Err: apiErr}
}
