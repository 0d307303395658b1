// Package device implements the managed-device registry.
package device

import (
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jeffmoIA/netdesk/internal/domain"
	"github.com/jeffmoIA/netdesk/internal/secrets"
	"github.com/jeffmoIA/netdesk/pkg/common"
)

// Service enforces registry invariants: unique name and IP, valid IPv4
// syntax, restricted status set, encrypted credentials.
type Service struct {
	db  *gorm.DB
	box *secrets.Box
}

func NewService(db *gorm.DB, box *secrets.Box) *Service {
	return &Service{db: db, box: box}
}

// RegisterInput carries the fields accepted at registration time.
type RegisterInput struct {
	Name         string
	Ipaddr       string
	Username     string
	Password     string
	Model        string
	Firmware     string
	Location     string
	CustomerId   string
	CustomerName string
	Notes        string
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name         *string
	Ipaddr       *string
	Username     *string
	Password     *string
	Model        *string
	Firmware     *string
	Location     *string
	Status       *string
	CustomerId   *string
	CustomerName *string
	Notes        *string
}

// ValidIPv4 reports whether ip is dotted-quad IPv4 syntax.
func ValidIPv4(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil {
		return false
	}
	// net.ParseIP accepts IPv4-mapped IPv6 forms; the registry stores
	// dotted quads only.
	return strings.Count(ip, ".") == 3
}

// Register validates and inserts a new device. The device starts as
// "active" and unreachable; the first reachability probe is dispatched
// asynchronously by the caller, registration never blocks on the network.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.NetDevice, error) {
	name := strings.TrimSpace(in.Name)
	ip := strings.TrimSpace(in.Ipaddr)

	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be blank"}
	}
	if ip == "" {
		return nil, &ValidationError{Field: "ipaddr", Reason: "must not be blank"}
	}
	if !ValidIPv4(ip) {
		return nil, &ValidationError{Field: "ipaddr", Reason: "not a valid IPv4 address"}
	}

	if taken, err := s.nameTaken(ctx, name, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, &DuplicateError{Field: "name", Value: name}
	}
	if taken, err := s.ipTaken(ctx, ip, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, &DuplicateError{Field: "ipaddr", Value: ip}
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = "admin"
	}
	password, err := s.box.Seal(in.Password)
	if err != nil {
		return nil, err
	}

	dev := &domain.NetDevice{
		ID:           common.UUIDint64(),
		Name:         name,
		Ipaddr:       ip,
		Model:        strings.TrimSpace(in.Model),
		Firmware:     strings.TrimSpace(in.Firmware),
		Username:     username,
		Password:     password,
		Location:     strings.TrimSpace(in.Location),
		Status:       domain.DeviceStatusActive,
		Reachable:    false,
		CustomerId:   strings.TrimSpace(in.CustomerId),
		CustomerName: strings.TrimSpace(in.CustomerName),
		Notes:        strings.TrimSpace(in.Notes),
	}

	if err := s.db.WithContext(ctx).Create(dev).Error; err != nil {
		return nil, err
	}

	zap.L().Info("device registered",
		zap.Int64("id", dev.ID),
		zap.String("name", dev.Name),
		zap.String("ip", dev.Ipaddr))
	return dev, nil
}

// Update applies a partial update, re-running the uniqueness and syntax
// checks while excluding the record itself from the duplicate lookups.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*domain.NetDevice, error) {
	dev, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, &ValidationError{Field: "name", Reason: "must not be blank"}
		}
		if taken, err := s.nameTaken(ctx, name, id); err != nil {
			return nil, err
		} else if taken {
			return nil, &DuplicateError{Field: "name", Value: name}
		}
		dev.Name = name
	}

	if in.Ipaddr != nil {
		ip := strings.TrimSpace(*in.Ipaddr)
		if ip == "" {
			return nil, &ValidationError{Field: "ipaddr", Reason: "must not be blank"}
		}
		if !ValidIPv4(ip) {
			return nil, &ValidationError{Field: "ipaddr", Reason: "not a valid IPv4 address"}
		}
		if taken, err := s.ipTaken(ctx, ip, id); err != nil {
			return nil, err
		} else if taken {
			return nil, &DuplicateError{Field: "ipaddr", Value: ip}
		}
		dev.Ipaddr = ip
	}

	if in.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*in.Status))
		if !domain.IsValidDeviceStatus(status) {
			return nil, &ValidationError{Field: "status", Reason: "must be one of " + strings.Join(domain.DeviceStatuses, ", ")}
		}
		dev.Status = status
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			username = "admin"
		}
		dev.Username = username
	}
	if in.Password != nil {
		sealed, err := s.box.Seal(*in.Password)
		if err != nil {
			return nil, err
		}
		dev.Password = sealed
	}
	if in.Model != nil {
		dev.Model = strings.TrimSpace(*in.Model)
	}
	if in.Firmware != nil {
		dev.Firmware = strings.TrimSpace(*in.Firmware)
	}
	if in.Location != nil {
		dev.Location = strings.TrimSpace(*in.Location)
	}
	if in.CustomerId != nil {
		dev.CustomerId = strings.TrimSpace(*in.CustomerId)
	}
	if in.CustomerName != nil {
		dev.CustomerName = strings.TrimSpace(*in.CustomerName)
	}
	if in.Notes != nil {
		dev.Notes = strings.TrimSpace(*in.Notes)
	}

	if err := s.db.WithContext(ctx).Save(dev).Error; err != nil {
		return nil, err
	}
	return dev, nil
}

// Remove deletes a device by id, reporting whether a record existed.
func (s *Service) Remove(ctx context.Context, id int64) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&domain.NetDevice{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*domain.NetDevice, error) {
	var dev domain.NetDevice
	err := s.db.WithContext(ctx).First(&dev, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *Service) FindByName(ctx context.Context, name string) (*domain.NetDevice, error) {
	var dev domain.NetDevice
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&dev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *Service) FindByIp(ctx context.Context, ip string) (*domain.NetDevice, error) {
	var dev domain.NetDevice
	err := s.db.WithContext(ctx).Where("ipaddr = ?", ip).First(&dev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *Service) FindByStatus(ctx context.Context, status string) ([]domain.NetDevice, error) {
	var devs []domain.NetDevice
	err := s.db.WithContext(ctx).
		Where("status = ?", strings.ToLower(status)).
		Order("name ASC").
		Find(&devs).Error
	return devs, err
}

func (s *Service) ListReachable(ctx context.Context) ([]domain.NetDevice, error) {
	var devs []domain.NetDevice
	err := s.db.WithContext(ctx).
		Where("reachable = ?", true).
		Order("name ASC").
		Find(&devs).Error
	return devs, err
}

// Search matches text case-insensitively against name, ip, model,
// location, customer name and notes.
func (s *Service) Search(ctx context.Context, text string) ([]domain.NetDevice, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(text)) + "%"
	var devs []domain.NetDevice
	err := s.db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? OR LOWER(ipaddr) LIKE ? OR LOWER(model) LIKE ?
			OR LOWER(location) LIKE ? OR LOWER(customer_name) LIKE ? OR LOWER(notes) LIKE ?`,
			pattern, pattern, pattern, pattern, pattern, pattern).
		Order("name ASC").
		Find(&devs).Error
	return devs, err
}

// ReachabilityStats summarizes the last-probed state of the fleet.
type ReachabilityStats struct {
	Total            int64   `json:"total"`
	Reachable        int64   `json:"reachable"`
	Unreachable      int64   `json:"unreachable"`
	ReachablePercent float64 `json:"reachable_percent"`
}

// Statistics aggregates registry-wide counters.
type Statistics struct {
	Total              int64             `json:"total"`
	ByStatus           map[string]int64  `json:"by_status"`
	ByModel            map[string]int64  `json:"by_model"`
	Reachability       ReachabilityStats `json:"reachability"`
	WithCredentials    int64             `json:"with_credentials"`
	WithoutCredentials int64             `json:"without_credentials"`
}

func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	db := s.db.WithContext(ctx)
	stats := &Statistics{
		ByStatus: map[string]int64{},
		ByModel:  map[string]int64{},
	}

	if err := db.Model(&domain.NetDevice{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Key   string
		Count int64
	}
	var byStatus []bucket
	if err := db.Model(&domain.NetDevice{}).
		Select("status as key, count(id) as count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, b := range byStatus {
		stats.ByStatus[b.Key] = b.Count
	}

	var byModel []bucket
	if err := db.Model(&domain.NetDevice{}).
		Select("model as key, count(id) as count").
		Where("model <> ''").
		Group("model").
		Scan(&byModel).Error; err != nil {
		return nil, err
	}
	for _, b := range byModel {
		stats.ByModel[b.Key] = b.Count
	}

	if err := db.Model(&domain.NetDevice{}).
		Where("reachable = ?", true).
		Count(&stats.Reachability.Reachable).Error; err != nil {
		return nil, err
	}
	stats.Reachability.Total = stats.Total
	stats.Reachability.Unreachable = stats.Total - stats.Reachability.Reachable
	if stats.Total > 0 {
		pct := float64(stats.Reachability.Reachable) / float64(stats.Total) * 100
		stats.Reachability.ReachablePercent = math.Round(pct*100) / 100
	}

	if err := db.Model(&domain.NetDevice{}).
		Where("username <> '' AND password <> ''").
		Count(&stats.WithCredentials).Error; err != nil {
		return nil, err
	}
	stats.WithoutCredentials = stats.Total - stats.WithCredentials

	return stats, nil
}

// Credentials decrypts the stored API credentials of a device.
func (s *Service) Credentials(dev *domain.NetDevice) (username, password string, err error) {
	password, err = s.box.Open(dev.Password)
	if err != nil {
		return "", "", err
	}
	return dev.Username, password, nil
}

// SetReachability persists the outcome of a reachability probe. An
// unreachable active device transitions to "error"; a reachable errored
// device recovers to "active".
func (s *Service) SetReachability(ctx context.Context, id int64, reachable bool, msg string) error {
	dev, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"reachable":      reachable,
		"last_probe_at":  time.Now(),
		"last_probe_msg": msg,
	}
	if !reachable && dev.Status == domain.DeviceStatusActive {
		updates["status"] = domain.DeviceStatusError
	} else if reachable && dev.Status == domain.DeviceStatusError {
		updates["status"] = domain.DeviceStatusActive
	}

	return s.db.WithContext(ctx).
		Model(&domain.NetDevice{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SaveExport persists a configuration export blob after a successful fetch.
func (s *Service) SaveExport(ctx context.Context, id int64, export string) error {
	return s.db.WithContext(ctx).
		Model(&domain.NetDevice{}).
		Where("id = ?", id).
		Update("last_export", export).Error
}

// SetModel records the hardware model discovered by an identity probe.
func (s *Service) SetModel(ctx context.Context, id int64, model string) error {
	return s.db.WithContext(ctx).
		Model(&domain.NetDevice{}).
		Where("id = ?", id).
		Update("model", model).Error
}

func (s *Service) nameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&domain.NetDevice{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

func (s *Service) ipTaken(ctx context.Context, ip string, excludeID int64) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&domain.NetDevice{}).Where("ipaddr = ?", ip)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}
