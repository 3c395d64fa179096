package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/gallery/internal/domain"
	pkgkafka "github.com/utafrali/gallery/pkg/kafka"
	"github.com/utafrali/gallery/pkg/logger"
)

// Kafka topics for gallery domain events.
var (
	TopicUserRegistered      = pkgkafka.Topic("user", "registered")
	TopicUserPasswordChanged = pkgkafka.Topic("user", "password_changed")
	TopicImageUploaded       = pkgkafka.Topic("image", "uploaded")
	TopicImageDeleted        = pkgkafka.Topic("image", "deleted")
)

// Aggregate types.
const (
	AggregateTypeUser  = "user"
	AggregateTypeImage = "image"
)

// Source identifies events published by this service.
const Source = "gallery"

// UserRegisteredData is the payload of a user.registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// UserPasswordChangedData is the payload of a user.password_changed event.
type UserPasswordChangedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// ImageData is the payload of image.uploaded and image.deleted events.
type ImageData struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Order  int    `json:"order"`
}

// publisher is satisfied by *pkgkafka.Producer.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes gallery domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// UserRegistered publishes a user.registered event.
func (p *Producer) UserRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateTypeUser, UserRegisteredData{
		ID:    user.ID,
		Email: user.Email,
	})
}

// PasswordChanged publishes a user.password_changed event.
func (p *Producer) PasswordChanged(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserPasswordChanged, user.ID, AggregateTypeUser, UserPasswordChangedData{
		UserID: user.ID,
		Email:  user.Email,
	})
}

// ImageUploaded publishes an image.uploaded event.
func (p *Producer) ImageUploaded(ctx context.Context, img *domain.Image) error {
	return p.publish(ctx, TopicImageUploaded, img.ID, AggregateTypeImage, imageData(img))
}

// ImageDeleted publishes an image.deleted event.
func (p *Producer) ImageDeleted(ctx context.Context, img *domain.Image) error {
	return p.publish(ctx, TopicImageDeleted, img.ID, AggregateTypeImage, imageData(img))
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func imageData(img *domain.Image) ImageData {
	return ImageData{
		ID:     img.ID,
		UserID: img.UserID,
		Title:  img.Title,
		URL:    img.URL,
		Order:  img.Order,
	}
}

// Noop discards all events. It is used when KAFKA_ENABLED is false.
type Noop struct{}

func (Noop) UserRegistered(context.Context, *domain.User) error  { return nil }
func (Noop) PasswordChanged(context.Context, *domain.User) error { return nil }
func (Noop) ImageUploaded(context.Context, *domain.Image) error  { return nil }
func (Noop) ImageDeleted(context.Context, *domain.Image) error   { return nil }
