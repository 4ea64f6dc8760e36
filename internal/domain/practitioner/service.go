package practitioner

import (
	"context"
	"errors"
	"time"

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

// defaultCredentialExpiry backfills a missing expiryDate with yesterday.
// Upstream feeds frequently omit the date for lapsed credentials; a
// just-expired default keeps them out of every active-credential view.
func defaultCredentialExpiry(payload map[string]interface{}) {
	items, ok := payload["credentials"].([]interface{})
	if !ok {
		return
	}
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if v, present := m["expiryDate"]; !present || v == nil {
			m["expiryDate"] = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
		}
	}
}

func (s *Service) Create(ctx context.Context, feedAlias string, payload map[string]interface{}) (*record.Record, error) {
	payload["feedAlias"] = feedAlias
	defaultCredentialExpiry(payload)
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
	defaultCredentialExpiry(candidate)
	if err := rec.UpdateWithCandidate(ctx, s.db, candidate); err != nil {
		return nil, err
	}
	return rec, nil
}

// Retire soft-deletes the practitioner and cascades through its contact
// and credentials. Retiring an unknown or already retired item is a no-op.
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

func (s *Service) List(ctx context.Context, feedAlias string, limit, offset int) ([]*record.Record, error) {
	where := "practitioner.feed_alias = $1"
	return s.typ.GetWithCriteria(ctx, s.db, where, []interface{}{feedAlias}, &record.QueryOptions{
		Limit:  limit,
		Offset: offset,
	})
}
