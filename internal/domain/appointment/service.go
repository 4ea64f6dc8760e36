package appointment

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/clinfeed/clinfeed/internal/platform/record"
)

type Service struct {
	typ *record.Type
	db  record.Querier
	log zerolog.Logger
}

// NewService accepts any Querier: the pgx pool in production, a scripted
// fake in tests.
func NewService(typ *record.Type, db record.Querier, log zerolog.Logger) *Service {
	return &Service{typ: typ, db: db, log: log}
}

func (s *Service) Create(ctx context.Context, feedAlias string, payload map[string]interface{}) (*record.Record, error) {
	payload["feedAlias"] = feedAlias
	return s.typ.Insert(ctx, s.db, payload, nil)
}

func (s *Service) Get(ctx context.Context, feedAlias, itemUUID string) (*record.Record, error) {
	return s.typ.GetByUUID(ctx, s.db, itemUUID, feedAlias)
}

func (s *Service) Update(ctx context.Context, feedAlias, itemUUID string, candidate map[string]interface{}) (*record.Record, error) {
	rec, err := s.typ.GetByUUID(ctx, s.db, itemUUID, feedAlias)
	if err != nil {
		return nil, err
	}
	if err := rec.UpdateWithCandidate(ctx, s.db, candidate); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Retire(ctx context.Context, feedAlias, itemUUID string) (bool, error) {
	rec, err := s.typ.GetByUUID(ctx, s.db, itemUUID, feedAlias)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := rec.Retire(ctx, s.db); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the appointments of one feed, optionally narrowed by
// status.
func (s *Service) List(ctx context.Context, feedAlias, status string, limit, offset int) ([]*record.Record, error) {
	where := "appointment.feed_alias = $1"
	args := []interface{}{feedAlias}
	if status != "" {
		where += " AND appointment.status = $2"
		args = append(args, status)
	}
	return s.typ.GetWithCriteria(ctx, s.db, where, args, &record.QueryOptions{
		Limit:   limit,
		Offset:  offset,
		OrderBy: "appointment.start_time",
	})
}
