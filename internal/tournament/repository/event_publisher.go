package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"codeduel/internal/common/mq"
	"codeduel/internal/tournament/model"
	appErr "codeduel/pkg/errors"
)

const eventTypeHeader = "event-type"

// EventPublisher publishes room and submission events for downstream consumers.
type EventPublisher interface {
	PublishRoomEvent(ctx context.Context, event model.RoomEvent) error
	PublishSubmissionEvent(ctx context.Context, event model.SubmissionEvent) error
}

// MQEventPublisher publishes events to a message queue. Room events are keyed
// by room id so one room's events stay ordered within a partition.
type MQEventPublisher struct {
	producer        mq.Producer
	roomTopic       string
	submissionTopic string
}

// NewMQEventPublisher creates a new MQ event publisher.
func NewMQEventPublisher(producer mq.Producer, roomTopic, submissionTopic string) *MQEventPublisher {
	return &MQEventPublisher{producer: producer, roomTopic: roomTopic, submissionTopic: submissionTopic}
}

func (p *MQEventPublisher) PublishRoomEvent(ctx context.Context, event model.RoomEvent) error {
	if event.RoomID == "" {
		return appErr.ValidationError("room_id", "required")
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().Unix()
	}
	return p.publish(ctx, p.roomTopic, event.RoomID, string(event.Type), event)
}

func (p *MQEventPublisher) PublishSubmissionEvent(ctx context.Context, event model.SubmissionEvent) error {
	if event.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().Unix()
	}
	return p.publish(ctx, p.submissionTopic, event.PlayerID, string(event.Type), event)
}

func (p *MQEventPublisher) publish(ctx context.Context, topic, key, eventType string, event interface{}) error {
	if p == nil || p.producer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("event publisher is not configured")
	}
	if topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("event topic is required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = key
	message.SetHeader(eventTypeHeader, eventType)
	if err := p.producer.Publish(ctx, topic, message); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish %s event failed", eventType)
	}
	return nil
}
