package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"lojaju/backend/internal/domain"
	"lojaju/backend/internal/sale"
	"lojaju/backend/internal/store"
)

func (s *Service) OpenDraft() domain.DraftView {
	draft := s.drafts.Open()
	s.logger.Debug("draft opened", zap.String("draft_id", draft.ID()))
	return draft.View()
}

func (s *Service) Draft(id string) (*sale.Draft, error) {
	return s.drafts.Get(id)
}

func (s *Service) DraftView(id string) (domain.DraftView, error) {
	draft, err := s.drafts.Get(id)
	if err != nil {
		return domain.DraftView{}, err
	}
	return draft.View(), nil
}

func (s *Service) DiscardDraft(id string) error {
	return s.drafts.Discard(id)
}

func (s *Service) SelectDraftCustomer(ctx context.Context, id string, customerCode int64) (domain.DraftView, error) {
	draft, err := s.drafts.Get(id)
	if err != nil {
		return domain.DraftView{}, err
	}
	if _, err := s.repo.GetCustomer(ctx, customerCode); err != nil {
		return domain.DraftView{}, err
	}
	draft.SelectCustomer(customerCode)
	return draft.View(), nil
}

func (s *Service) AddDraftItem(ctx context.Context, id string, productID int64, quantity int) (domain.DraftView, error) {
	draft, err := s.drafts.Get(id)
	if err != nil {
		return domain.DraftView{}, err
	}
	if err := draft.AddItem(ctx, productID, quantity); err != nil {
		return domain.DraftView{}, err
	}
	return draft.View(), nil
}

func (s *Service) EditDraftItem(ctx context.Context, id string, productID int64, quantity int) (domain.DraftView, error) {
	draft, err := s.drafts.Get(id)
	if err != nil {
		return domain.DraftView{}, err
	}
	if err := draft.EditItem(ctx, productID, quantity); err != nil {
		return domain.DraftView{}, err
	}
	return draft.View(), nil
}

func (s *Service) RemoveDraftItem(id string, productID int64) (domain.DraftView, error) {
	draft, err := s.drafts.Get(id)
	if err != nil {
		return domain.DraftView{}, err
	}
	if err := draft.RemoveItem(productID); err != nil {
		return domain.DraftView{}, err
	}
	return draft.View(), nil
}

func (s *Service) ClearDraft(id string) (domain.DraftView, error) {
	draft, err := s.drafts.Get(id)
	if err != nil {
		return domain.DraftView{}, err
	}
	draft.Clear()
	return draft.View(), nil
}

// CommitSale persists the draft as a sale. The draft is cleared only when
// the write succeeds; on any error it is left as it was.
func (s *Service) CommitSale(ctx context.Context, draft *sale.Draft) (domain.Sale, error) {
	if draft == nil {
		return domain.Sale{}, fmt.Errorf("%w: no sale in progress", store.ErrValidation)
	}
	snapshot, err := draft.Snapshot()
	if err != nil {
		return domain.Sale{}, err
	}
	if _, err := s.repo.GetCustomer(ctx, snapshot.CustomerCode); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Sale{}, fmt.Errorf("%w: customer %d does not exist", store.ErrValidation, snapshot.CustomerCode)
		}
		return domain.Sale{}, err
	}
	snapshot.CreatedAt = s.now().UTC()

	committed, err := s.repo.CommitSale(ctx, snapshot)
	if err != nil {
		var stockErr *store.StockError
		if errors.As(err, &stockErr) {
			s.logger.Warn("sale rejected: stock changed",
				zap.String("draft_id", draft.ID()),
				zap.Int64("product_id", stockErr.ProductID),
				zap.Int("requested", stockErr.Requested),
				zap.Int("available", stockErr.Available),
			)
		}
		return domain.Sale{}, err
	}

	draft.Clear()
	s.logger.Info("sale committed",
		zap.Int64("sale_id", committed.ID),
		zap.Int64("customer_code", committed.CustomerCode),
		zap.String("total", committed.Total.StringFixed(2)),
		zap.Int("items", len(committed.Items)),
	)
	s.invalidateDashboard(ctx)
	return *committed, nil
}

func (s *Service) CommitDraft(ctx context.Context, id string) (domain.Sale, error) {
	draft, err := s.drafts.Get(id)
	if err != nil {
		return domain.Sale{}, err
	}
	return s.CommitSale(ctx, draft)
}

func (s *Service) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	committed, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *committed, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	if filter.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", store.ErrValidation)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, fmt.Errorf("%w: end date is before start date", store.ErrValidation)
	}
	return s.repo.ListSales(ctx, filter)
}
