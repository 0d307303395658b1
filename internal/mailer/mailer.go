// Package mailer renders customer notification templates and delivers
// them over SMTP. Templates live in the database so operators can edit
// wording without a deploy.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"github.com/jeffmoIA/netdesk/config"
	"github.com/jeffmoIA/netdesk/internal/device"
	"github.com/jeffmoIA/netdesk/internal/domain"
	"github.com/jeffmoIA/netdesk/pkg/common"
)

// Sender delivers a composed message. gomail.Dialer satisfies it; tests
// substitute a recorder.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Service struct {
	db     *gorm.DB
	sender Sender
	from   string
}

func NewService(db *gorm.DB, cfg config.SmtpConfig) *Service {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &Service{db: db, sender: dialer, from: from}
}

// NewServiceWithSender wires a custom sender, used by tests.
func NewServiceWithSender(db *gorm.DB, sender Sender, from string) *Service {
	return &Service{db: db, sender: sender, from: from}
}

// TemplateInput carries the fields accepted when creating or updating a
// template. Subject and body must parse as text/template sources.
type TemplateInput struct {
	Name    string
	Subject string
	Body    string
	Remark  string
}

func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (*domain.MailTemplate, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &device.ValidationError{Field: "name", Reason: "must not be blank"}
	}
	if err := checkTemplate(in.Subject); err != nil {
		return nil, &device.ValidationError{Field: "subject", Reason: err.Error()}
	}
	if err := checkTemplate(in.Body); err != nil {
		return nil, &device.ValidationError{Field: "body", Reason: err.Error()}
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.MailTemplate{}).
		Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &device.DuplicateError{Field: "name", Value: name}
	}

	tpl := &domain.MailTemplate{
		ID:      common.UUIDint64(),
		Name:    name,
		Subject: in.Subject,
		Body:    in.Body,
		Remark:  strings.TrimSpace(in.Remark),
	}
	if err := s.db.WithContext(ctx).Create(tpl).Error; err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *Service) UpdateTemplate(ctx context.Context, id int64, in TemplateInput) (*domain.MailTemplate, error) {
	var tpl domain.MailTemplate
	err := s.db.WithContext(ctx).First(&tpl, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &device.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		tpl.Name = name
	}
	if in.Subject != "" {
		if err := checkTemplate(in.Subject); err != nil {
			return nil, &device.ValidationError{Field: "subject", Reason: err.Error()}
		}
		tpl.Subject = in.Subject
	}
	if in.Body != "" {
		if err := checkTemplate(in.Body); err != nil {
			return nil, &device.ValidationError{Field: "body", Reason: err.Error()}
		}
		tpl.Body = in.Body
	}
	if in.Remark != "" {
		tpl.Remark = strings.TrimSpace(in.Remark)
	}

	if err := s.db.WithContext(ctx).Save(&tpl).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *Service) RemoveTemplate(ctx context.Context, id int64) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&domain.MailTemplate{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) ListTemplates(ctx context.Context) ([]domain.MailTemplate, error) {
	var tpls []domain.MailTemplate
	err := s.db.WithContext(ctx).Order("name ASC").Find(&tpls).Error
	return tpls, err
}

func (s *Service) GetTemplate(ctx context.Context, name string) (*domain.MailTemplate, error) {
	var tpl domain.MailTemplate
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &device.NotFoundError{ID: 0}
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Render fills a template's subject and body with the given data.
func (s *Service) Render(ctx context.Context, name string, data interface{}) (subject, body string, err error) {
	tpl, err := s.GetTemplate(ctx, name)
	if err != nil {
		return "", "", err
	}
	subject, err = render("subject", tpl.Subject, data)
	if err != nil {
		return "", "", fmt.Errorf("template %q subject: %w", name, err)
	}
	body, err = render("body", tpl.Body, data)
	if err != nil {
		return "", "", fmt.Errorf("template %q body: %w", name, err)
	}
	return subject, body, nil
}

// SendNotification renders a named template and mails it to the
// recipients.
func (s *Service) SendNotification(ctx context.Context, templateName string, data interface{}, to ...string) error {
	if len(to) == 0 {
		return &device.ValidationError{Field: "to", Reason: "at least one recipient required"}
	}
	subject, body, err := s.Render(ctx, templateName, data)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.sender.DialAndSend(m); err != nil {
		zap.L().Error("mail delivery failed",
			zap.String("template", templateName),
			zap.Strings("to", to),
			zap.Error(err))
		return err
	}

	zap.L().Info("notification sent",
		zap.String("template", templateName),
		zap.Strings("to", to))
	return nil
}

func checkTemplate(src string) error {
	_, err := template.New("check").Parse(src)
	return err
}

func render(name, src string, data interface{}) (string, error) {
	t, err := template.New(name).Parse(src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
