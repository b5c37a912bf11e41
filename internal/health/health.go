// Пакет health отдаёт состояние зависимостей платёжного ядра для проб k8s.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/version"
)

// Status описывает состояние компонента.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check — результат одной проверки зависимости.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response — полный ответ /healthz.
type Response struct {
	Service       string           `json:"service"`
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker выполняет проверку одной зависимости (storage, redis, kafka).
type Checker interface {
	Check() Check
}

// Handler агрегирует зарегистрированные проверки.
type Handler struct {
	mu        sync.RWMutex
	checkers  map[string]Checker
	version   string
	startTime time.Time
}

// NewHandler создаёт handler для /healthz и /readyz.
func NewHandler(buildVersion string) *Handler {
	return &Handler{
		checkers:  make(map[string]Checker),
		version:   buildVersion,
		startTime: time.Now(),
	}
}

// RegisterChecker добавляет проверку под указанным именем,
// повторная регистрация заменяет предыдущую.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

func (h *Handler) snapshotCheckers() map[string]Checker {
	h.mu.RLock()
	defer h.mu.RUnlock()

	checkers := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		checkers[name] = checker
	}
	return checkers
}

func runChecks(checkers map[string]Checker) (map[string]Check, Status) {
	checks := make(map[string]Check, len(checkers))
	overall := StatusHealthy

	for name, checker := range checkers {
		check := checker.Check()
		checks[name] = check
		overall = worseStatus(overall, check.Status)
	}

	return checks, overall
}

// worseStatus выбирает более тяжёлый из двух статусов:
// unhealthy > degraded > healthy.
func worseStatus(current, candidate Status) Status {
	if current == StatusUnhealthy || candidate == StatusUnhealthy {
		return StatusUnhealthy
	}
	if current == StatusDegraded || candidate == StatusDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// ServeHTTP отвечает на /healthz полным отчётом по зависимостям.
func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	checks, overall := runChecks(h.snapshotCheckers())

	response := Response{
		Service:       version.Service(),
		Status:        overall,
		Timestamp:     time.Now().UTC(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}

	statusCode := http.StatusOK
	if overall == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// LivenessHandler — liveness probe, всегда 200 пока процесс жив.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadinessHandler возвращает 503 при любой unhealthy-зависимости;
// degraded считается пригодным для трафика.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	_, overall := runChecks(h.snapshotCheckers())

	if overall == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// SimpleChecker оборачивает функцию проверки и замеряет её длительность.
type SimpleChecker struct {
	name  string
	probe func() error
}

// NewSimpleChecker создаёт проверку из функции.
func NewSimpleChecker(name string, probe func() error) *SimpleChecker {
	return &SimpleChecker{
		name:  name,
		probe: probe,
	}
}

// Check выполняет проверку и фиксирует время выполнения.
func (c *SimpleChecker) Check() Check {
	start := time.Now()
	err := c.probe()
	elapsed := time.Since(start)

	check := Check{
		Name:       c.name,
		Status:     StatusHealthy,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}
