package validator

import (
	"errors"
	"fmt"
	"strings"

	"comanda/internal/domain/model"
	"comanda/internal/usecase"
)

// メニューの入力が不正
var ErrInvalidMenuItem = errors.New("invalid menu item")

type menuValidator struct{}

func NewMenuValidator() usecase.MenuValidator {
	return &menuValidator{}
}

func (v *menuValidator) ValidateMenuItem(item model.MenuItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMenuItem)
	}
	if len(item.Name) > 255 {
		return fmt.Errorf("%w: name too long", ErrInvalidMenuItem)
	}
	if strings.TrimSpace(item.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidMenuItem)
	}
	if item.Price.IsNegative() {
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidMenuItem)
	}

	groupIDs := make(map[string]struct{}, len(item.ModifierGroups))
	for _, g := range item.ModifierGroups {
		if _, dup := groupIDs[g.ID]; dup {
			return fmt.Errorf("%w: duplicate group id %q", ErrInvalidMenuItem, g.ID)
		}
		groupIDs[g.ID] = struct{}{}

		if err := validateGroup(g); err != nil {
			return err
		}
	}
	return nil
}

func validateGroup(g model.ModifierGroup) error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: group name is required", ErrInvalidMenuItem)
	}
	if len(g.Options) == 0 {
		return fmt.Errorf("%w: group %q has no options", ErrInvalidMenuItem, g.Name)
	}

	switch g.Mode {
	case model.ModifierModeCount:
		if g.Min < 0 || g.Max < 0 {
			return fmt.Errorf("%w: group %q min/max must be >= 0", ErrInvalidMenuItem, g.Name)
		}
		if g.Max > 0 && g.Max < g.Min {
			return fmt.Errorf("%w: group %q max < min", ErrInvalidMenuItem, g.Name)
		}
	case model.ModifierModePerPiece:
		if g.Pieces < 1 {
			return fmt.Errorf("%w: group %q pieces must be >= 1", ErrInvalidMenuItem, g.Name)
		}
		if g.MinPerPiece < 0 {
			return fmt.Errorf("%w: group %q min_per_piece must be >= 0", ErrInvalidMenuItem, g.Name)
		}
	default:
		return fmt.Errorf("%w: group %q has unknown mode %q", ErrInvalidMenuItem, g.Name, g.Mode)
	}

	optIDs := make(map[string]struct{}, len(g.Options))
	for _, o := range g.Options {
		if _, dup := optIDs[o.ID]; dup {
			return fmt.Errorf("%w: duplicate option id %q", ErrInvalidMenuItem, o.ID)
		}
		optIDs[o.ID] = struct{}{}

		if strings.TrimSpace(o.Name) == "" {
			return fmt.Errorf("%w: option name is required", ErrInvalidMenuItem)
		}
		if o.PriceDelta.IsNegative() {
			return fmt.Errorf("%w: option %q price_delta must be >= 0", ErrInvalidMenuItem, o.Name)
		}
	}
	return nil
}
