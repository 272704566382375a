package common

import (
	"context"
	"fmt"

	"fjacquet/stmt-import/internal/models"
)

// EntityFinder resolves entity records by display name.
type EntityFinder interface {
	FindEntityByName(ctx context.Context, name string) (*models.Entity, error)
}

// ConfirmDraft turns the matched items of an import session, and the
// uncertain ones when acceptUncertain is set, into confirmed transactions
// ready for execute. Accepted oracle proposals ask for a correction rule.
func ConfirmDraft(ctx context.Context, entities EntityFinder, s *models.ImportSession, acceptUncertain bool) ([]models.ConfirmedTransaction, error) {
	if s.Result == nil {
		return nil, fmt.Errorf("session %s has no import result", s.SessionID)
	}

	items := s.Result.Matched
	if acceptUncertain {
		items = append(append([]models.BucketItem(nil), items...), s.Result.Uncertain...)
	}

	out := make([]models.ConfirmedTransaction, 0, len(items))
	for _, item := range items {
		if item.Match == nil {
			continue
		}
		entity, err := entities.FindEntityByName(ctx, item.Match.EntityName)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", item.Index, err)
		}
		out = append(out, models.ConfirmedTransaction{
			RawTransaction: item.Transaction,
			EntityID:       entity.ID,
			EntityName:     entity.Name,
			EntityURL:      entity.URL,
			MatchType:      item.Match.MatchType,
			SaveRule:       item.Match.MatchType == models.MatchTypeAI,
		})
	}
	return out, nil
}
