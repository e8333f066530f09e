package lockout

import (
	"strings"
	"sync"
	"time"

	"github.com/harmony-app/harmony-backend/internal/apperr"
)

const (
	registrationLimit  = 5
	registrationWindow = time.Hour
	sweepInterval      = 10 * time.Minute
)

type window struct {
	count     int
	startedAt time.Time
}

// RegistrationWindow считает регистрации с одного IP в скользящем окне.
// Счетчики живут в памяти процесса и не переживают перезапуск.
type RegistrationWindow struct {
	mu      sync.Mutex
	windows map[string]*window
	clock   func() time.Time
	stop    chan struct{}
	done    chan struct{}
}

// NewRegistrationWindow создает окно регистраций и запускает фоновую
// чистку устаревших счетчиков.
func NewRegistrationWindow() *RegistrationWindow {
	return newRegistrationWindow(time.Now, true)
}

// NewRegistrationWindowWithClock создает окно с подставными часами,
// без фоновой чистки. Используется в тестах.
func NewRegistrationWindowWithClock(clock func() time.Time) *RegistrationWindow {
	return newRegistrationWindow(clock, false)
}

func newRegistrationWindow(clock func() time.Time, sweep bool) *RegistrationWindow {
	w := &RegistrationWindow{
		windows: make(map[string]*window),
		clock:   clock,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if sweep {
		go w.sweepLoop()
	} else {
		close(w.done)
	}
	return w
}

// CheckRegistrationLimit проверяет и увеличивает счетчик регистраций
// для данного IP. Возвращает RateLimited при превышении лимита.
func (w *RegistrationWindow) CheckRegistrationLimit(ip string) error {
	key := strings.TrimSpace(ip)
	if key == "" {
		key = "unknown"
	}
	now := w.clock()

	w.mu.Lock()
	defer w.mu.Unlock()

	win, ok := w.windows[key]
	if !ok || now.Sub(win.startedAt) >= registrationWindow {
		w.windows[key] = &window{count: 1, startedAt: now}
		return nil
	}
	if win.count >= registrationLimit {
		remaining := registrationWindow - now.Sub(win.startedAt)
		return apperr.RateLimitedFor("too many registrations from this address", ceilSeconds(remaining))
	}
	win.count++
	return nil
}

// Stop останавливает фоновую чистку.
func (w *RegistrationWindow) Stop() {
	select {
	case <-w.done:
		return
	default:
	}
	close(w.stop)
	<-w.done
}

func (w *RegistrationWindow) sweepLoop() {
	defer close(w.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *RegistrationWindow) sweep() {
	now := w.clock()
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, win := range w.windows {
		if now.Sub(win.startedAt) >= registrationWindow {
			delete(w.windows, key)
		}
	}
}
