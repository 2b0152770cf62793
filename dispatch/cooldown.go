package dispatch

import "sync"

// GlobalKey — ключ кулдауна, общий для всех пользователей команды.
const GlobalKey = "global"

// Cooldowns хранит время последнего срабатывания команд: token → ключ области → unix-секунды.
// Таблица только растёт; записи не удаляются.
type Cooldowns struct {
	mu   sync.Mutex
	last map[string]map[string]int64
}

// NewCooldowns создаёт пустую таблицу кулдаунов.
func NewCooldowns() *Cooldowns {
	return &Cooldowns{last: make(map[string]map[string]int64)}
}

// Allow атомарно проверяет кулдаун и, если окно прошло, записывает now.
// Возвращает false без изменения состояния, если с прошлого срабатывания прошло меньше window секунд.
// Разница сравнивается как uint64, поэтому окно больше math.MaxInt64 тоже блокирует.
func (c *Cooldowns) Allow(token, key string, window uint64, now int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	byKey, ok := c.last[token]
	if ok {
		if last, seen := byKey[key]; seen && last <= now && uint64(now-last) < window {
			return false
		}
	} else {
		byKey = make(map[string]int64)
		c.last[token] = byKey
	}

	byKey[key] = now
	return true
}

// Len возвращает число записей в таблице.
func (c *Cooldowns) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, byKey := range c.last {
		n += len(byKey)
	}
	return n
}
