package assignments

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/angelmondragon/tabletloan-backend/pkg/keylock"
)

// RepairStatuses clears the pointer of devices that are available yet still
// reference an assignment. A second run over repaired data reports nothing.
func (s *service) RepairStatuses(ctx context.Context) (*RepairReport, error) {
	devices, err := s.repo.ListDanglingDevices(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inconsistent devices")
	}

	report := &RepairReport{Scanned: len(devices)}
	for _, device := range devices {
		logCtx := s.logg.WithField(ctx, "device_id", device.ID.String())

		unlock := s.locks.Lock(keylock.DeviceKey(device.ID.String()))
		ok, err := s.repo.ClearDanglingPointer(ctx, device.ID)
		unlock()
		if err != nil {
			s.logg.Error(logCtx, "status repair failed", err)
			report.Failures = append(report.Failures, RecordFailure{ID: device.ID, Error: err.Error()})
			continue
		}
		if !ok {
			continue
		}
		report.Repaired++
		report.DeviceIDs = append(report.DeviceIDs, device.ID)
		s.logg.Info(logCtx, "cleared stale assignment pointer")
	}
	return report, nil
}

// AutoAssign pairs unassigned persons with available devices in insertion
// order. Pairs lost to a concurrent change are skipped.
func (s *service) AutoAssign(ctx context.Context) (*AutoAssignResult, error) {
	persons, err := s.repo.ListUnassignedPersons(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unassigned persons")
	}
	devices, err := s.repo.ListAvailableDevices(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list available devices")
	}

	result := &AutoAssignResult{Details: []string{}}
	pairs := min(len(persons), len(devices))
	for i := 0; i < pairs; i++ {
		person, device := persons[i], devices[i]
		_, err := s.Create(ctx, CreateInput{DeviceID: device.ID, PersonID: person.ID})
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
				result.Details = append(result.Details,
					fmt.Sprintf("Skipped device %s for %s: %s", device.AssetTag, person.FullName(), conflictMessage(err)))
				continue
			}
			return result, err
		}
		result.AssignedCount++
		result.Details = append(result.Details, fmt.Sprintf("Assigned device %s to %s", device.AssetTag, person.FullName()))
	}

	s.logg.Info(s.logg.WithField(ctx, "assigned_count", result.AssignedCount), "auto-assign finished")
	return result, nil
}

func conflictMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}

