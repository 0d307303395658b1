// Package nodes implements the network-node catalog: IPRAN and GPON
// points of presence that devices and service documents reference.
package nodes

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jeffmoIA/netdesk/internal/device"
	"github.com/jeffmoIA/netdesk/internal/domain"
	"github.com/jeffmoIA/netdesk/pkg/common"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CreateInput carries the fields accepted when cataloging a node.
type CreateInput struct {
	Kind   string
	Alias  string
	Name   string
	Ipaddr string
	Remark string
}

type UpdateInput struct {
	Alias  *string
	Name   *string
	Ipaddr *string
	Remark *string
}

// Create validates and inserts a node. Alias and IP are unique across
// both kinds so an address can never be cataloged twice.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.NetNode, error) {
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	if !domain.IsValidNodeKind(kind) {
		return nil, &device.ValidationError{Field: "kind", Reason: "must be one of " + strings.Join(domain.NodeKinds, ", ")}
	}

	alias := strings.TrimSpace(in.Alias)
	if alias == "" {
		return nil, &device.ValidationError{Field: "alias", Reason: "must not be blank"}
	}
	ip := strings.TrimSpace(in.Ipaddr)
	if ip == "" {
		return nil, &device.ValidationError{Field: "ipaddr", Reason: "must not be blank"}
	}
	if !device.ValidIPv4(ip) {
		return nil, &device.ValidationError{Field: "ipaddr", Reason: "not a valid IPv4 address"}
	}

	if taken, err := s.aliasTaken(ctx, alias, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, &device.DuplicateError{Field: "alias", Value: alias}
	}
	if taken, err := s.ipTaken(ctx, ip, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, &device.DuplicateError{Field: "ipaddr", Value: ip}
	}

	node := &domain.NetNode{
		ID:     common.UUIDint64(),
		Kind:   kind,
		Alias:  alias,
		Name:   strings.TrimSpace(in.Name),
		Ipaddr: ip,
		Remark: strings.TrimSpace(in.Remark),
	}
	if err := s.db.WithContext(ctx).Create(node).Error; err != nil {
		return nil, err
	}

	zap.L().Info("node cataloged",
		zap.Int64("id", node.ID),
		zap.String("kind", node.Kind),
		zap.String("alias", node.Alias))
	return node, nil
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*domain.NetNode, error) {
	node, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Alias != nil {
		alias := strings.TrimSpace(*in.Alias)
		if alias == "" {
			return nil, &device.ValidationError{Field: "alias", Reason: "must not be blank"}
		}
		if taken, err := s.aliasTaken(ctx, alias, id); err != nil {
			return nil, err
		} else if taken {
			return nil, &device.DuplicateError{Field: "alias", Value: alias}
		}
		node.Alias = alias
	}
	if in.Ipaddr != nil {
		ip := strings.TrimSpace(*in.Ipaddr)
		if !device.ValidIPv4(ip) {
			return nil, &device.ValidationError{Field: "ipaddr", Reason: "not a valid IPv4 address"}
		}
		if taken, err := s.ipTaken(ctx, ip, id); err != nil {
			return nil, err
		} else if taken {
			return nil, &device.DuplicateError{Field: "ipaddr", Value: ip}
		}
		node.Ipaddr = ip
	}
	if in.Name != nil {
		node.Name = strings.TrimSpace(*in.Name)
	}
	if in.Remark != nil {
		node.Remark = strings.TrimSpace(*in.Remark)
	}

	if err := s.db.WithContext(ctx).Save(node).Error; err != nil {
		return nil, err
	}
	return node, nil
}

func (s *Service) Remove(ctx context.Context, id int64) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&domain.NetNode{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*domain.NetNode, error) {
	var node domain.NetNode
	err := s.db.WithContext(ctx).First(&node, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &device.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (s *Service) FindByAlias(ctx context.Context, alias string) (*domain.NetNode, error) {
	var node domain.NetNode
	err := s.db.WithContext(ctx).Where("alias = ?", alias).First(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// ListByKind returns nodes of one kind, or all nodes when kind is blank.
func (s *Service) ListByKind(ctx context.Context, kind string) ([]domain.NetNode, error) {
	var nodes []domain.NetNode
	q := s.db.WithContext(ctx).Order("alias ASC")
	if kind = strings.ToLower(strings.TrimSpace(kind)); kind != "" {
		q = q.Where("kind = ?", kind)
	}
	err := q.Find(&nodes).Error
	return nodes, err
}

func (s *Service) Search(ctx context.Context, text string) ([]domain.NetNode, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(text)) + "%"
	var nodes []domain.NetNode
	err := s.db.WithContext(ctx).
		Where(`LOWER(alias) LIKE ? OR LOWER(name) LIKE ? OR LOWER(ipaddr) LIKE ? OR LOWER(remark) LIKE ?`,
			pattern, pattern, pattern, pattern).
		Order("alias ASC").
		Find(&nodes).Error
	return nodes, err
}

func (s *Service) aliasTaken(ctx context.Context, alias string, excludeID int64) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&domain.NetNode{}).Where("alias = ?", alias)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

func (s *Service) ipTaken(ctx context.Context, ip string, excludeID int64) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&domain.NetNode{}).Where("ipaddr = ?", ip)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}
