package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

var errInvalidTx = errors.New("memory: unknown tx handle")

// Store — in-memory состояние всех репозиториев ядра.
// Репозитории делят одно хранилище, чтобы единица работы покрывала
// резервы, заказ и outbox одним атомарным блоком.
type Store struct {
	mu sync.Mutex

	orders  map[string]domain.Order
	batches map[string]domain.StockBatch
	// batchSeq фиксирует порядок создания партий — детерминированный
	// tie-break при выборе партии для резерва.
	batchSeq map[string]int
	nextSeq  int

	events map[string]domain.ProcessedEvent
	outbox map[string]*outboxRecord
}

// NewStore создаёт пустое in-memory хранилище для разработки и тестов.
func NewStore() *Store {
	return &Store{
		orders:   make(map[string]domain.Order),
		batches:  make(map[string]domain.StockBatch),
		batchSeq: make(map[string]int),
		events:   make(map[string]domain.ProcessedEvent),
		outbox:   make(map[string]*outboxRecord),
	}
}

// memTx — дескриптор in-memory транзакции: журнал отката поверх общего стора.
type memTx struct {
	store *Store
	undo  []func()
}

// onRollback регистрирует действие, отменяющее последнюю мутацию.
func (t *memTx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

// Run выполняет fn под общим замком стора. При ошибке журнал отката
// проигрывается в обратном порядке, возвращая хранилище в исходное состояние.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(ctx, tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

// exec выполняет fn в рамках переданной транзакции либо, если tx == nil,
// в собственной короткой критической секции без журнала отката.
func (s *Store) exec(tx domain.Tx, fn func(t *memTx) error) error {
	if tx == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(&memTx{store: s})
	}

	t, ok := tx.(*memTx)
	if !ok || t.store != s {
		return errInvalidTx
	}
	return fn(t)
}

var _ domain.UnitOfWork = (*Store)(nil)
