package catalog

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// StaticCatalog — in-memory каталог товаров. Используется в dev-режиме
// без внешнего каталога и в тестах.
type StaticCatalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

var _ domain.Catalog = (*StaticCatalog)(nil)

func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{products: make(map[string]domain.Product)}
}

// AddProduct регистрирует или заменяет товар.
func (c *StaticCatalog) AddProduct(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *StaticCatalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// StaticDirectory — in-memory справочник профилей покупателей.
type StaticDirectory struct {
	mu       sync.RWMutex
	profiles map[string]domain.CustomerProfile
}

var _ domain.CustomerDirectory = (*StaticDirectory)(nil)

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{profiles: make(map[string]domain.CustomerProfile)}
}

// AddProfile регистрирует или заменяет профиль покупателя.
func (d *StaticDirectory) AddProfile(customerID string, profile domain.CustomerProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[customerID] = profile
}

func (d *StaticDirectory) GetProfile(_ context.Context, customerID string) (domain.CustomerProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[customerID]
	if !ok {
		return domain.CustomerProfile{}, domain.ErrCustomerNotFound
	}
	return p, nil
}
