// Package records holds the data_study record type, the rules that validate its text,
// and the service that pairs every committed mutation with a change notification.
//
// The service never lets notification affect the outcome of a store operation:
// Notifier calls happen only after the repository has committed and their result
// is not observed.
package records

import (
	"context"
)

type Service struct {
	repo     Repository
	notifier Notifier
}

func NewService(repo Repository, notifier Notifier) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{repo: repo, notifier: notifier}
}

func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*Record, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, text string) (*Record, error) {
	record, err := s.repo.Insert(ctx, text)
	if err != nil {
		return nil, err
	}
	s.notifier.RecordUpserted(ctx, *record)
	return record, nil
}

func (s *Service) Update(ctx context.Context, id int64, text string) (*Record, error) {
	record, err := s.repo.Update(ctx, id, text)
	if err != nil {
		return nil, err
	}
	s.notifier.RecordUpserted(ctx, *record)
	return record, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.notifier.RecordDeleted(ctx, id)
	return nil
}

// DeleteAll clears the table. No notification is sent for a bulk clear.
func (s *Service) DeleteAll(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}

type nopNotifier struct{}

func (nopNotifier) RecordUpserted(context.Context, Record) {}
func (nopNotifier) RecordDeleted(context.Context, int64) {}
