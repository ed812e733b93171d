package commands

import (
	"fmt"
	"io"

	"geotask/internal/exitcode"
	"geotask/internal/reconcile"
)

// findTask resolves ref against the local list. Numbers follow list order.
func findTask(entries []reconcile.Entry, ref TaskRef) (reconcile.Entry, error) {
	if ref.ID == "" {
		if ref.Number < 1 || ref.Number > len(entries) {
			return reconcile.Entry{}, fmt.Errorf("task number out of range: %d", ref.Number)
		}
		return entries[ref.Number-1], nil
	}
	for _, en := range entries {
		if en.ID == ref.ID {
			return en, nil
		}
	}
	return reconcile.Entry{}, fmt.Errorf("%w: %s", reconcile.ErrTaskNotFound, ref.ID)
}

// lookup parses args and finds the task, printing the error on failure.
// It returns exitcode.Success when en is usable.
func lookup(entries []reconcile.Entry, args []string, errOut io.Writer) (reconcile.Entry, int) {
	ref, err := ParseTaskRef(args)
	if err == nil {
		var en reconcile.Entry
		if en, err = findTask(entries, ref); err == nil {
			return en, exitcode.Success
		}
	}
	fmt.Fprintf(errOut, "error: %v\n", err)
	return reconcile.Entry{}, exitcode.UserError
}
