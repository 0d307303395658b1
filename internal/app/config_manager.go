package app

import (
	"sync"
	"time"

	"github.com/spf13/cast"
	"gorm.io/gorm"

	"github.com/jeffmoIA/netdesk/internal/domain"
)

// ConfigManager reads sys_config settings with a short-lived cache so
// scheduler loops do not hammer the database.
type ConfigManager struct {
	app *Application

	mu      sync.RWMutex
	cache   map[string]string
	fetched time.Time
}

const configCacheTTL = 30 * time.Second

func NewConfigManager(app *Application) *ConfigManager {
	return &ConfigManager{app: app, cache: map[string]string{}}
}

func (m *ConfigManager) value(category, name string) string {
	key := category + "." + name

	m.mu.RLock()
	if time.Since(m.fetched) < configCacheTTL {
		v, okHit := m.cache[key]
		m.mu.RUnlock()
		if okHit {
			return v
		}
		return ""
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Since(m.fetched) >= configCacheTTL {
		var rows []domain.SysConfig
		if err := m.app.gormDB.Find(&rows).Error; err == nil || err == gorm.ErrRecordNotFound {
			m.cache = make(map[string]string, len(rows))
			for _, r := range rows {
				m.cache[r.Type+"."+r.Name] = r.Value
			}
			m.fetched = time.Now()
		}
	}
	return m.cache[key]
}

// Invalidate forces a reload on the next read.
func (m *ConfigManager) Invalidate() {
	m.mu.Lock()
	m.fetched = time.Time{}
	m.mu.Unlock()
}

func (m *ConfigManager) GetString(category, name string) string {
	return m.value(category, name)
}

func (m *ConfigManager) GetInt(category, name string) int {
	return cast.ToInt(m.value(category, name))
}

func (m *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(m.value(category, name))
}

func (m *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(m.value(category, name))
}

// SetValue upserts a setting and drops the cache.
func (m *ConfigManager) SetValue(category, name, value string) error {
	var cfg domain.SysConfig
	err := m.app.gormDB.Where("type = ? AND name = ?", category, name).First(&cfg).Error
	if err == gorm.ErrRecordNotFound {
		err = m.app.gormDB.Create(&domain.SysConfig{
			Type:  category,
			Name:  name,
			Value: value,
		}).Error
	} else if err == nil {
		err = m.app.gormDB.Model(&domain.SysConfig{}).
			Where("id = ?", cfg.ID).
			Update("value", value).Error
	}
	if err != nil {
		return err
	}
	m.Invalidate()
	return nil
}
