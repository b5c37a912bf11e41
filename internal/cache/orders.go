package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

const defaultTTL = 5 * time.Minute

// OrderViews — read-through кеш представлений заказов поверх Redis.
// Nil-экземпляр безопасен: все операции становятся no-op, промахом кеша.
type OrderViews struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Entry
}

// NewOrderViews создаёт кеш представлений. ttl <= 0 заменяется на значение по умолчанию.
func NewOrderViews(client *redis.Client, ttl time.Duration, logger *log.Entry) *OrderViews {
	if logger == nil {
		logger = log.New().WithField("component", "order-views-cache")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &OrderViews{client: client, ttl: ttl, logger: logger}
}

func orderKey(id string) string {
	return fmt.Sprintf("shopcore:order:%s", id)
}

// Get возвращает заказ из кеша. Любая ошибка Redis трактуется как промах.
func (v *OrderViews) Get(ctx context.Context, id string) (domain.Order, bool) {
	if v == nil || v.client == nil {
		return domain.Order{}, false
	}

	data, err := v.client.Get(ctx, orderKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			v.logger.WithError(err).WithField("order_id", id).Warn("cache get failed")
		}
		return domain.Order{}, false
	}

	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		v.logger.WithError(err).WithField("order_id", id).Warn("cache entry corrupted, dropping")
		v.client.Del(ctx, orderKey(id))
		return domain.Order{}, false
	}
	return order, true
}

// Set кладёт заказ в кеш. Ошибки записи только логируются.
func (v *OrderViews) Set(ctx context.Context, order domain.Order) {
	if v == nil || v.client == nil {
		return
	}

	data, err := json.Marshal(order)
	if err != nil {
		v.logger.WithError(err).WithField("order_id", order.ID).Warn("cache marshal failed")
		return
	}
	if err := v.client.Set(ctx, orderKey(order.ID), data, v.ttl).Err(); err != nil {
		v.logger.WithError(err).WithField("order_id", order.ID).Warn("cache set failed")
	}
}

// Invalidate выбрасывает заказ из кеша после смены статуса.
func (v *OrderViews) Invalidate(ctx context.Context, id string) {
	if v == nil || v.client == nil {
		return
	}
	if err := v.client.Del(ctx, orderKey(id)).Err(); err != nil {
		v.logger.WithError(err).WithField("order_id", id).Warn("cache invalidate failed")
	}
}
