// Package coalesce склеивает частые частичные обновления одной записи
// в один исходящий write. Непрерывные взаимодействия (drag, resize)
// иначе порождали бы запись на каждый промежуточный кадр.
package coalesce

import (
	"sort"
	"sync"
	"time"
)

// DefaultWindow — окно склейки по умолчанию
const DefaultWindow = 50 * time.Millisecond

// Flush отправляет один склеенный write по записи
type Flush func(id string, partial map[string]any)

// Coalescer буферизует частичные обновления по id записи.
// Короткий таймер сбрасывает весь буфер одним write на запись;
// поздние поля перетирают ранние по тому же ключу.
type Coalescer struct {
	flush   Flush
	pending map[string]map[string]any
	timer   *time.Timer
	window  time.Duration
	mu      sync.Mutex
	closed  bool
}

// New создает Coalescer с заданным окном склейки.
// window <= 0 заменяется DefaultWindow.
func New(window time.Duration, flush Flush) *Coalescer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Coalescer{
		window:  window,
		flush:   flush,
		pending: make(map[string]map[string]any),
	}
}

// Add добавляет частичное обновление в буфер записи.
// Первый Add после пустого буфера взводит таймер сброса.
func (c *Coalescer) Add(id string, partial map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	buffered, exists := c.pending[id]
	if !exists {
		buffered = make(map[string]any, len(partial))
		c.pending[id] = buffered
	}
	for k, v := range partial {
		buffered[k] = v
	}

	if c.timer == nil {
		c.timer = time.AfterFunc(c.window, c.flushExpired)
	}
}

// Purge выбрасывает буферизованное обновление записи.
// Вызывается перед delete: иначе отложенный write воскресил бы
// только что удаленную запись.
func (c *Coalescer) Purge(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pending, id)
}

// Pending возвращает число записей с буферизованными обновлениями
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

// FlushNow синхронно сбрасывает буфер. Используется при teardown
// и в тестах.
func (c *Coalescer) FlushNow() {
	c.doFlush()
}

// Close останавливает таймер и сбрасывает остаток буфера
func (c *Coalescer) Close() {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.doFlush()
}

// flushExpired вызывается таймером
func (c *Coalescer) flushExpired() {
	c.doFlush()
}

// doFlush забирает буфер под мьютексом и шлет по одному write на запись.
// Порядок записей детерминирован для воспроизводимости.
func (c *Coalescer) doFlush() {
	c.mu.Lock()
	batch := c.pending
	c.pending = make(map[string]map[string]any)
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	ids := make([]string, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c.flush(id, batch[id])
	}
}
