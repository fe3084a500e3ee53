// Package resource implements the Input/Output lifecycle operations:
// create_input, create_output, mark_optional, set_default,
// get_current_value/get_timestamp/get_typed, and delete_io, all scoped to a
// path inside a client's own namespace entry.
package resource

import (
	"github.com/jtchitty/legatoDataHub/internal/ipcerr"
	"github.com/jtchitty/legatoDataHub/internal/sample"
	"github.com/jtchitty/legatoDataHub/internal/tree"
)

// Direction distinguishes Input from Output creation; the two share
// identical duplicate/upgrade logic, differing only in the target Kind and
// in which existing kinds are considered a conflict.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
)

func (d Direction) kind() tree.Kind {
	if d == DirectionOutput {
		return tree.KindOutput
	}
	return tree.KindInput
}

// Create implements create_input/create_output: idempotent when a matching
// resource already exists, ipcerr.ErrDuplicate on a conflicting existing
// resource, and an in-place upgrade of a bare namespace/placeholder
// otherwise.
func Create(tr *tree.Tree, nsRoot *tree.Entry, path string, dir Direction, dataType sample.Type, units, sessionID string) (*tree.Entry, error) {
	entry, err := tr.Find(nsRoot, path)
	if err != nil {
		return nil, ipcerr.Kill(err.Error())
	}
	if entry != nil {
		switch entry.Kind() {
		case dir.kind():
			if entry.DataType() != dataType || entry.Units() != units {
				return nil, ipcerr.ErrDuplicate
			}
			return entry, nil // already exists, nothing more to do
		case tree.KindInput, tree.KindOutput, tree.KindObservation:
			// Any resource kind other than our own direction conflicts.
			return nil, ipcerr.ErrDuplicate
		case tree.KindNamespace, tree.KindPlaceholder:
			// Falls through to the upgrade below.
		}
	}

	entry, err = tr.GetOrCreate(nsRoot, path)
	if err != nil {
		return nil, ipcerr.Kill(err.Error())
	}
	entry.SetRole(dir.kind(), dataType, units, sessionID)
	return entry, nil
}

// MarkOptional implements mark_optional: marks an Output as not required
// for the overall "healthy" determination. Idempotent; a no-op (not an
// error) if path doesn't resolve to an existing resource, administrative
// calls on absent resources succeed silently.
func MarkOptional(tr *tree.Tree, nsRoot *tree.Entry, path string) error {
	entry, err := tr.Find(nsRoot, path)
	if err != nil {
		return ipcerr.Kill(err.Error())
	}
	if entry == nil {
		return nil
	}
	entry.MarkOptional()
	return nil
}

// SetDefault implements set_default: the first call for a resource wins;
// later calls are silently ignored.
func SetDefault(tr *tree.Tree, nsRoot *tree.Entry, path string, value sample.Sample) error {
	entry, err := tr.Find(nsRoot, path)
	if err != nil {
		return ipcerr.Kill(err.Error())
	}
	if entry == nil {
		return ipcerr.ErrNotFound
	}
	entry.SetDefault(value)
	return nil
}

// CurrentValue implements get_current_value: returns the resource's most
// recent sample, or its default if it has never been pushed to, or
// ipcerr.ErrUnavailable if neither exists.
func CurrentValue(tr *tree.Tree, nsRoot *tree.Entry, path string) (sample.Sample, error) {
	entry, err := tr.Find(nsRoot, path)
	if err != nil {
		return sample.Sample{}, ipcerr.Kill(err.Error())
	}
	if entry == nil {
		return sample.Sample{}, ipcerr.ErrNotFound
	}
	if s, ok := entry.CurrentValue(); ok {
		return s, nil
	}
	if s, ok := entry.Default(); ok {
		return s, nil
	}
	return sample.Sample{}, ipcerr.ErrUnavailable
}

// Timestamp implements get_timestamp: the timestamp of the current value,
// with the same default/unavailable fallback as CurrentValue.
func Timestamp(tr *tree.Tree, nsRoot *tree.Entry, path string) (float64, error) {
	s, err := CurrentValue(tr, nsRoot, path)
	if err != nil {
		return 0, err
	}
	return s.Timestamp(), nil
}

// Typed implements get_typed on the I/O side: fetches the current value
// and requires it be of exactly the expected type. Typed reads never
// coerce; fetching with the wrong type is a contract violation that
// terminates the client.
func Typed(tr *tree.Tree, nsRoot *tree.Entry, path string, want sample.Type) (sample.Sample, error) {
	s, err := CurrentValue(tr, nsRoot, path)
	if err != nil {
		return sample.Sample{}, err
	}
	if s.Type() != want {
		return sample.Sample{}, ipcerr.Kill("typed read of " + want.String() + " on " + s.Type().String() + " resource " + path)
	}
	return s, nil
}

// Delete implements delete_io: removes the resource. If one or more
// Observations are bound to it as their source, it is degraded to a
// placeholder instead of being structurally removed, preserving those
// bindings and any handlers still registered on it. Observation entries
// themselves live under /obs/, not as tree children of their source, so
// the check goes through the source's bound-observations list rather than
// tree structure.
func Delete(tr *tree.Tree, nsRoot *tree.Entry, path string) error {
	entry, err := tr.Find(nsRoot, path)
	if err != nil {
		return ipcerr.Kill(err.Error())
	}
	if entry == nil {
		return nil // delete of a non-existent resource is a silent no-op
	}
	if len(entry.BoundObservations()) > 0 {
		entry.DegradeToPlaceholder()
		return nil
	}
	tr.Delete(entry)
	return nil
}
