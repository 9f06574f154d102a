package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"workout/backend/internal/controller"
	apperrors "workout/backend/internal/errors"
	"workout/backend/internal/fsm"
	"workout/backend/internal/service"
)

type action func(ctx context.Context, svc *service.WorkoutService) (*controller.Snapshot, *apperrors.APIError)

// runAction recovers the session, runs fn and prints the resulting snapshot.
func runAction(cmd *cobra.Command, opts *RootOptions, fn action) error {
	svc, closeAll, err := openService(cmd.Context(), opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeAll()

	snap, apiErr := fn(cmd.Context(), svc)
	if apiErr != nil {
		return rejected(apiErr)
	}
	return writeSnapshot(cmd.OutOrStdout(), opts.Format, *snap)
}

func newStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the recovered session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, opts, func(_ context.Context, svc *service.WorkoutService) (*controller.Snapshot, *apperrors.APIError) {
				return svc.State(service.AnyAthlete)
			})
		},
	}
}

func newPauseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, opts, func(ctx context.Context, svc *service.WorkoutService) (*controller.Snapshot, *apperrors.APIError) {
				return svc.Pause(ctx, service.AnyAthlete)
			})
		},
	}
}

func newResumeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, opts, func(ctx context.Context, svc *service.WorkoutService) (*controller.Snapshot, *apperrors.APIError) {
				return svc.Resume(ctx, service.AnyAthlete)
			})
		},
	}
}

type setTarget struct {
	exercise  string
	setNumber int
}

func (t *setTarget) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&t.exercise, "exercise", "e", "", "exercise instance id or catalog exercise id (default: first exercise with an open set)")
	cmd.Flags().IntVarP(&t.setNumber, "set", "s", 0, "set number (default: the current set)")
}

// resolve picks the exercise instance and set number the flags point at.
func (t *setTarget) resolve(snap controller.Snapshot) (string, int, *apperrors.APIError) {
	for _, ex := range snap.Exercises {
		if t.exercise != "" && ex.Instance.ID != t.exercise && ex.Instance.ExerciseID != t.exercise {
			continue
		}
		if t.setNumber > 0 {
			return ex.Instance.ID, t.setNumber, nil
		}
		if current, ok := ex.CurrentSet(); ok {
			return ex.Instance.ID, current.SetNumber, nil
		}
		if t.exercise != "" {
			return "", 0, apperrors.BadRequest("invalid_command", "exercise "+t.exercise+" has no open set")
		}
	}
	if t.exercise != "" {
		return "", 0, apperrors.BadRequest("invalid_command", "exercise "+t.exercise+" is not in the session")
	}
	return "", 0, apperrors.BadRequest("invalid_command", "no open set left")
}

func newCompleteCommand(opts *RootOptions) *cobra.Command {
	var target setTarget
	var weight float64
	var reps int

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Record a completed set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, opts, func(ctx context.Context, svc *service.WorkoutService) (*controller.Snapshot, *apperrors.APIError) {
				snap, apiErr := svc.State(service.AnyAthlete)
				if apiErr != nil {
					return nil, apiErr
				}
				instanceID, setNumber, apiErr := target.resolve(*snap)
				if apiErr != nil {
					return nil, apiErr
				}
				return svc.CompleteSet(ctx, service.AnyAthlete, controller.CompleteSetInput{
					ExerciseInstanceID: instanceID,
					SetNumber:          setNumber,
					Weight:             weight,
					Reps:               reps,
				})
			})
		},
	}
	target.register(cmd)
	cmd.Flags().Float64VarP(&weight, "weight", "w", 0, "weight lifted")
	cmd.Flags().IntVarP(&reps, "reps", "r", 0, "repetitions done")
	_ = cmd.MarkFlagRequired("reps")
	return cmd
}

func newSkipCommand(opts *RootOptions) *cobra.Command {
	var target setTarget

	cmd := &cobra.Command{
		Use:   "skip",
		Short: "Skip a set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, opts, func(ctx context.Context, svc *service.WorkoutService) (*controller.Snapshot, *apperrors.APIError) {
				snap, apiErr := svc.State(service.AnyAthlete)
				if apiErr != nil {
					return nil, apiErr
				}
				instanceID, setNumber, apiErr := target.resolve(*snap)
				if apiErr != nil {
					return nil, apiErr
				}
				return svc.SkipSet(ctx, service.AnyAthlete, controller.SkipSetInput{
					ExerciseInstanceID: instanceID,
					SetNumber:          setNumber,
				})
			})
		},
	}
	target.register(cmd)
	return cmd
}

func newFinishCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "finish",
		Short: "Request and confirm the end of the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, opts, func(ctx context.Context, svc *service.WorkoutService) (*controller.Snapshot, *apperrors.APIError) {
				if _, apiErr := svc.RequestFinish(ctx, service.AnyAthlete); apiErr != nil {
					return nil, apiErr
				}
				return svc.ConfirmFinish(ctx, service.AnyAthlete)
			})
		},
	}
}

func newTransitionsCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transitions",
		Short: "Print the session phase transition table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := fsm.WriteTable(cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("write table: %w", err)
			}
			return nil
		},
	}
}
