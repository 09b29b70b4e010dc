package session

import (
	"context"
	"strings"

	"github.com/goodtune/lounge/internal/apperr"
	"github.com/goodtune/lounge/internal/storage"
)

// Product returns a catalog product by id.
func (t *Tracker) Product(id string) (storage.Product, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, p := range t.settings.Products {
		if p.ID == id {
			return p, nil
		}
	}
	return storage.Product{}, apperr.New(apperr.NotFound, "settings.product", "product %s not found", id)
}

// UpdateRates replaces both tier rates.
func (t *Tracker) UpdateRates(ctx context.Context, rates storage.RateSettings) error {
	const op = "settings.update_rates"

	if rates.RateOneTwoPlayers <= 0 || rates.RateThreeFourPlayers <= 0 {
		return apperr.New(apperr.Validation, op, "rates must be positive")
	}

	return t.updateSettings(ctx, op, func(s *storage.Settings) error {
		s.Rates = rates
		return nil
	})
}

// AddProduct adds a catalog product and returns it with its new id.
func (t *Tracker) AddProduct(ctx context.Context, name string, price float64) (storage.Product, error) {
	const op = "settings.add_product"

	product := storage.Product{ID: t.newID(), Name: strings.TrimSpace(name), Price: price}
	if err := validateProduct(op, product); err != nil {
		return storage.Product{}, err
	}

	err := t.updateSettings(ctx, op, func(s *storage.Settings) error {
		s.Products = append(s.Products, product)
		return nil
	})
	return product, err
}

// UpdateProduct replaces the name and price of an existing product.
func (t *Tracker) UpdateProduct(ctx context.Context, product storage.Product) error {
	const op = "settings.update_product"

	product.Name = strings.TrimSpace(product.Name)
	if err := validateProduct(op, product); err != nil {
		return err
	}

	return t.updateSettings(ctx, op, func(s *storage.Settings) error {
		for i := range s.Products {
			if s.Products[i].ID == product.ID {
				s.Products[i] = product
				return nil
			}
		}
		return apperr.New(apperr.NotFound, op, "product %s not found", product.ID)
	})
}

// DeleteProduct removes a product from the catalog.
func (t *Tracker) DeleteProduct(ctx context.Context, id string) error {
	const op = "settings.delete_product"

	return t.updateSettings(ctx, op, func(s *storage.Settings) error {
		for i := range s.Products {
			if s.Products[i].ID == id {
				s.Products = append(s.Products[:i], s.Products[i+1:]...)
				return nil
			}
		}
		return apperr.New(apperr.NotFound, op, "product %s not found", id)
	})
}

// AddDevice adds a device name to the device list.
func (t *Tracker) AddDevice(ctx context.Context, name string) error {
	const op = "settings.add_device"

	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.New(apperr.Validation, op, "device name is required")
	}

	return t.updateSettings(ctx, op, func(s *storage.Settings) error {
		if indexOf(s.Devices, name) >= 0 {
			return apperr.New(apperr.Validation, op, "device %s already exists", name)
		}
		s.Devices = append(s.Devices, name)
		return nil
	})
}

// RenameDevice renames a device. Existing sessions keep the old name.
func (t *Tracker) RenameDevice(ctx context.Context, oldName, newName string) error {
	const op = "settings.rename_device"

	newName = strings.TrimSpace(newName)
	if newName == "" {
		return apperr.New(apperr.Validation, op, "device name is required")
	}

	return t.updateSettings(ctx, op, func(s *storage.Settings) error {
		i := indexOf(s.Devices, oldName)
		if i < 0 {
			return apperr.New(apperr.NotFound, op, "device %s not found", oldName)
		}
		if newName != oldName && indexOf(s.Devices, newName) >= 0 {
			return apperr.New(apperr.Validation, op, "device %s already exists", newName)
		}
		s.Devices[i] = newName
		return nil
	})
}

// RemoveDevice removes a device from the device list.
func (t *Tracker) RemoveDevice(ctx context.Context, name string) error {
	const op = "settings.remove_device"

	return t.updateSettings(ctx, op, func(s *storage.Settings) error {
		i := indexOf(s.Devices, name)
		if i < 0 {
			return apperr.New(apperr.NotFound, op, "device %s not found", name)
		}
		s.Devices = append(s.Devices[:i], s.Devices[i+1:]...)
		return nil
	})
}

// ResetSettings restores the default settings. Sessions are kept.
func (t *Tracker) ResetSettings(ctx context.Context) error {
	return t.updateSettings(ctx, "settings.reset", func(s *storage.Settings) error {
		*s = t.defaults.Clone()
		return nil
	})
}

func (t *Tracker) updateSettings(ctx context.Context, op string, fn func(*storage.Settings) error) error {
	t.mu.Lock()
	next := t.settings.Clone()
	if err := fn(&next); err != nil {
		t.mu.Unlock()
		return err
	}
	t.settings = next
	err := t.saveSettings(ctx, op)
	rates := t.settings.Rates
	t.mu.Unlock()

	t.logger.Info().Str("op", op).Msg("Settings updated")
	t.notify(Event{Type: EventSettingsChanged, At: t.clock.Now(), Rates: rates})
	return err
}

func validateProduct(op string, p storage.Product) error {
	if p.Name == "" {
		return apperr.New(apperr.Validation, op, "product name is required")
	}
	if p.Price <= 0 {
		return apperr.New(apperr.Validation, op, "product price must be positive")
	}
	return nil
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
