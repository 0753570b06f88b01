package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"consultchat/internal/domain/entity"
	"consultchat/internal/domain/repository"
	"consultchat/pkg/errors"
	"consultchat/pkg/logger"
)

const notificationsCollection = "notifications"

type firestoreNotificationRepository struct {
	client *firestore.Client
}

func NewFirestoreNotificationRepository(client *firestore.Client) repository.NotificationRepository {
	return &firestoreNotificationRepository{
		client: client,
	}
}

func (r *firestoreNotificationRepository) notifications() *firestore.CollectionRef {
	return r.client.Collection(notificationsCollection)
}

func (r *firestoreNotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}

	_, err := r.notifications().Doc(notification.ID).Set(ctx, notification)
	if err != nil {
		return errors.Internal("Failed to create notification", err)
	}

	return nil
}

func (r *firestoreNotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	doc, err := r.notifications().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Notification", err)
		}
		return nil, errors.Internal("Failed to get notification", err)
	}

	return decodeNotification(doc)
}

func (r *firestoreNotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entity.Notification, error) {
	query := r.notifications().
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while fetching notifications for user %s: %v", userID, err)
		return nil, errors.Internal("Failed to fetch notifications", err)
	}

	return decodeNotifications(docs), nil
}

func (r *firestoreNotificationRepository) unreadByUser(userID string) firestore.Query {
	return r.notifications().
		Where("userId", "==", userID).
		Where("read", "==", false)
}

func (r *firestoreNotificationRepository) CountUnread(ctx context.Context, userID string, now time.Time) (int, error) {
	docs, err := r.unreadByUser(userID).Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to count unread notifications", err)
	}

	return countVisible(decodeNotifications(docs), now), nil
}

func (r *firestoreNotificationRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	_, err := r.notifications().Doc(id).Update(ctx, []firestore.Update{
		{Path: "read", Value: true},
		{Path: "readAt", Value: at},
	})
	if err != nil {
		if isNotFound(err) {
			return errors.NotFound("Notification", err)
		}
		return errors.Internal("Failed to mark notification as read", err)
	}

	return nil
}

func (r *firestoreNotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	docs, err := r.unreadByUser(userID).Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to fetch unread notifications", err)
	}

	return r.bulkUpdate(ctx, docs, []firestore.Update{
		{Path: "read", Value: true},
		{Path: "readAt", Value: at},
	})
}

func (r *firestoreNotificationRepository) Expire(ctx context.Context, id string, at time.Time) error {
	_, err := r.notifications().Doc(id).Update(ctx, []firestore.Update{
		{Path: "expiresAt", Value: at},
	})
	if err != nil {
		if isNotFound(err) {
			return errors.NotFound("Notification", err)
		}
		return errors.Internal("Failed to delete notification", err)
	}

	return nil
}

func (r *firestoreNotificationRepository) ExpireAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	docs, err := r.notifications().
		Where("userId", "==", userID).
		Where("read", "==", true).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to fetch read notifications", err)
	}

	visible := docs[:0]
	for _, doc := range docs {
		n, err := decodeNotification(doc)
		if err == nil && n.Visible(at) {
			visible = append(visible, doc)
		}
	}

	return r.bulkUpdate(ctx, visible, []firestore.Update{
		{Path: "expiresAt", Value: at},
	})
}

// bulkUpdate applies the same field updates to every document through a
// BulkWriter and reports how many writes succeeded.
func (r *firestoreNotificationRepository) bulkUpdate(ctx context.Context, docs []*firestore.DocumentSnapshot, updates []firestore.Update) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := bw.Update(doc.Ref, updates)
		if err != nil {
			bw.End()
			return 0, errors.Internal("Failed to queue notification update", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	updated := 0
	var firstErr error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		updated++
	}
	if firstErr != nil {
		logger.Error("Bulk notification update: %d of %d writes failed, first error: %v", len(jobs)-updated, len(jobs), firstErr)
		return updated, errors.Internal("Failed to update notifications", firstErr)
	}

	return updated, nil
}

func (r *firestoreNotificationRepository) WatchUnreadCount(ctx context.Context, userID string, fn func(int)) error {
	return watchQuery(ctx, r.unreadByUser(userID), "unread notifications", func(docs []*firestore.DocumentSnapshot) error {
		fn(countVisible(decodeNotifications(docs), time.Now()))
		return nil
	})
}

func countVisible(notifications []*entity.Notification, now time.Time) int {
	count := 0
	for _, n := range notifications {
		if !n.Read && n.Visible(now) {
			count++
		}
	}
	return count
}

func decodeNotification(doc *firestore.DocumentSnapshot) (*entity.Notification, error) {
	var notification entity.Notification
	if err := doc.DataTo(&notification); err != nil {
		return nil, errors.Internal("Failed to parse notification data", err)
	}
	notification.ID = doc.Ref.ID
	return &notification, nil
}

func decodeNotifications(docs []*firestore.DocumentSnapshot) []*entity.Notification {
	notifications := make([]*entity.Notification, 0, len(docs))
	for _, doc := range docs {
		notification, err := decodeNotification(doc)
		if err != nil {
			logger.Warn("Failed to parse notification %s: %v", doc.Ref.ID, err)
			continue
		}
		notifications = append(notifications, notification)
	}
	return notifications
}
