package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"workout/backend/internal/controller"
	"workout/backend/internal/model"
	"workout/backend/internal/resttimer"
)

func writeSnapshot(w io.Writer, format string, snap controller.Snapshot) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return writeSnapshotText(w, snap)
}

func writeSnapshotText(w io.Writer, snap controller.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "phase:\t%s\n", snap.Phase)
	if snap.ErrorReason != "" {
		fmt.Fprintf(tw, "reason:\t%s\n", snap.ErrorReason)
	}
	if snap.SessionID != "" {
		fmt.Fprintf(tw, "session:\t%s\n", snap.SessionID)
		fmt.Fprintf(tw, "elapsed:\t%s\n", seconds(snap.ElapsedSeconds))
		fmt.Fprintf(tw, "paused:\t%s\n", seconds(snap.PausedDurationSeconds))
	}
	if snap.FinishPending {
		fmt.Fprintf(tw, "finish:\tpending confirmation\n")
	}
	if snap.Rest.Status != resttimer.Idle && snap.Rest.Status != "" {
		fmt.Fprintf(tw, "rest:\t%s %s of %s\n",
			snap.Rest.Status, seconds(int64(snap.Rest.RemainingSeconds)), seconds(int64(snap.Rest.TotalSeconds)))
	}

	for _, ex := range snap.Exercises {
		fmt.Fprintf(tw, "\n%s\t(%s, rest %s)\n", ex.Name, ex.Instance.ID, seconds(int64(ex.RestSeconds)))
		for _, set := range ex.Sets {
			fmt.Fprintf(tw, "  %s%d\t%s\t%s\t%s\n", marker(set), set.SetNumber, set.Kind, set.Status, load(set))
		}
	}
	return tw.Flush()
}

func marker(set model.Set) string {
	if set.Status == model.SetStatusInProgress {
		return ">"
	}
	return " "
}

func load(set model.Set) string {
	if set.ActualWeight != nil && set.ActualReps != nil {
		return fmt.Sprintf("%g x %d", *set.ActualWeight, *set.ActualReps)
	}
	return fmt.Sprintf("%g x %d planned", set.PlannedWeight, set.PlannedReps)
}

func seconds(s int64) string {
	return (time.Duration(s) * time.Second).String()
}
