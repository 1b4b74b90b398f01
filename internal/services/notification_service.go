package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/utils"
)

type notificationService struct {
	backend Backend
	logger  utils.Logger
}

func NewNotificationService(b Backend, logger utils.Logger) NotificationService {
	return &notificationService{backend: b, logger: logger}
}

func (s *notificationService) List(ctx context.Context, sess *models.Session) ([]models.Notification, error) {
	if sess == nil {
		return nil, ErrNoSession
	}
	list, err := s.backend.Notifications(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

func (s *notificationService) MarkRead(ctx context.Context, sess *models.Session, notificationID string) error {
	if sess == nil {
		return ErrNoSession
	}
	if err := s.backend.MarkNotificationRead(ctx, notificationID); err != nil {
		return fmt.Errorf("mark notification %s read: %w", notificationID, err)
	}
	utils.FromContext(ctx, s.logger).Debug("notification marked read", "notification_id", notificationID, "user_id", sess.UserID)
	return nil
}
