package finance

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-analytics/internal/domain"
)

// CategoryInput is the writable part of a category.
type CategoryInput struct {
	Name string `json:"name"`
	Kind string `json:"type"`
	Icon string `json:"icon"`
}

// CreateCategory stores a new category. Names are unique per owner, case-insensitively.
func (s *Service) CreateCategory(ctx context.Context, userID string, in CategoryInput) (*domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > 100 {
		return nil, &domain.ValidationError{Field: "name", Reason: "must be 1 to 100 characters"}
	}
	if strings.EqualFold(name, domain.UncategorizedName) {
		return nil, &domain.ValidationError{Field: "name", Reason: "is reserved"}
	}
	kind, err := domain.ParseCategoryKind(in.Kind)
	if err != nil {
		return nil, err
	}

	c := &domain.Category{ID: newID(), UserID: userID, Name: name, Kind: kind, Icon: in.Icon}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("CreateCategory: %w", err)
	}
	return c, nil
}

// ListCategories returns the owner's categories in creation order.
func (s *Service) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}
	return cats, nil
}

// DeleteCategory removes a category. Without cascade it fails with a
// ConflictError while anything references it.
func (s *Service) DeleteCategory(ctx context.Context, userID, id string, cascade bool) error {
	mode := domain.DeleteRestrict
	if cascade {
		mode = domain.DeleteCascade
	}
	if err := s.store.DeleteCategory(ctx, userID, id, mode); err != nil {
		return fmt.Errorf("DeleteCategory: %w", err)
	}
	return nil
}
