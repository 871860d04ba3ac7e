package lww

import (
	"sync"

	"github.com/iudanet/scenesync/internal/models"
)

// View представляет локальную материализацию коллекции: map[id]Record,
// производную от последнего серверного снапшота и еще не подтвержденных
// оптимистичных мутаций. Владеет View исключительно sync-клиент;
// потребители читают копии и запрашивают мутации через его API.
type View struct {
	records map[string]*models.Record
	mu      sync.RWMutex
}

// NewView создает пустое представление коллекции.
func NewView() *View {
	return &View{
		records: make(map[string]*models.Record),
	}
}

// ApplySnapshot сворачивает авторитетный снапшот в локальное состояние.
// Для каждой записи снапшота:
//   - локальной записи нет — принимаем удаленную как есть
//   - локальная есть — удаленная побеждает по правилу RemoteWins,
//     иначе остается локальная (еще в полете) версия
//
// Записи, присутствующие локально, но отсутствующие в снапшоте,
// удаляются: членство в коллекции всегда определяет снапшот.
// Операция детерминирована и идемпотентна.
// Возвращает true, если состояние изменилось.
func (v *View) ApplySnapshot(snapshot []*models.Record) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	changed := false
	seen := make(map[string]struct{}, len(snapshot))

	for _, remote := range snapshot {
		seen[remote.ID] = struct{}{}

		local, exists := v.records[remote.ID]
		if !exists {
			v.records[remote.ID] = remote.Clone()
			changed = true
			continue
		}

		if RemoteWins(local, remote) {
			if remote.Timestamp != local.Timestamp {
				changed = true
			}
			v.records[remote.ID] = remote.Clone()
		}
	}

	// Удаление по отсутствию
	for id := range v.records {
		if _, ok := seen[id]; !ok {
			delete(v.records, id)
			changed = true
		}
	}

	return changed
}

// ApplyLocal безусловно кладет оптимистичную локальную версию записи.
// Вызывающий уже проштамповал ее текущим локальным timestamp.
func (v *View) ApplyLocal(record *models.Record) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.records[record.ID] = record.Clone()
}

// Remove удаляет запись из представления (оптимистичный delete
// или откат оптимистичного create). Возвращает удаленную версию
// для возможного отката, nil если записи не было.
func (v *View) Remove(id string) *models.Record {
	v.mu.Lock()
	defer v.mu.Unlock()

	record, exists := v.records[id]
	if !exists {
		return nil
	}
	delete(v.records, id)

	return record
}

// Replace целиком заменяет содержимое представления снапшотом,
// минуя LWW сравнение. Используется для отката оптимистичного
// состояния к авторитетному после терминального отказа записи.
func (v *View) Replace(snapshot []*models.Record) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.records = make(map[string]*models.Record, len(snapshot))
	for _, record := range snapshot {
		v.records[record.ID] = record.Clone()
	}
}

// Get возвращает копию записи по ID, nil если запись отсутствует.
func (v *View) Get(id string) *models.Record {
	v.mu.RLock()
	defer v.mu.RUnlock()

	record, exists := v.records[id]
	if !exists {
		return nil
	}

	return record.Clone()
}

// Snapshot возвращает копию всего представления.
// Потребители должны относиться к ней как к срезу на момент вызова.
func (v *View) Snapshot() map[string]*models.Record {
	v.mu.RLock()
	defer v.mu.RUnlock()

	result := make(map[string]*models.Record, len(v.records))
	for id, record := range v.records {
		result[id] = record.Clone()
	}

	return result
}

// Len возвращает число записей в представлении.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return len(v.records)
}
