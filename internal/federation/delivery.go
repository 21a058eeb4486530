package federation

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quillmesh/quillmesh/internal/models"
	"github.com/quillmesh/quillmesh/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

// Per-activity send timeout and overall retry deadline, per spec.md §5.
const (
	sendTimeout    = 10 * time.Second
	deliveryDeadline = time.Hour
)

// Publisher is the narrow interface EditController depends on so the
// merge engine never imports HTTP or signing code directly.
type Publisher interface {
	PublishUpdateArticle(ctx context.Context, edit *models.Edit, article *models.Article) error
}

// SenderIdentity is the key material and ap_id used to sign every
// outbound activity.
type SenderIdentity struct {
	APID       string
	PrivateKey *rsa.PrivateKey
}

// Queue is the transactional outbox: activities are persisted before
// delivery is attempted, and delivery is retried with exponential
// backoff against cenkalti/backoff/v4, mirroring the teacher's
// DocumentRevisionOutbox pending/published/failed lifecycle.
type Queue struct {
	repo   repository.Repository
	client *http.Client
	logger hclog.Logger
}

// NewQueue constructs a delivery Queue.
func NewQueue(repo repository.Repository, logger hclog.Logger) *Queue {
	return &Queue{
		repo:   repo,
		client: &http.Client{Timeout: sendTimeout},
		logger: logger.Named("federation.delivery"),
	}
}

// Client exposes the queue's HTTP client for callers (the inbox
// dispatcher) that need to fetch a remote actor document outside the
// delivery path.
func (q *Queue) Client() *http.Client { return q.client }

// Enqueue persists one delivery per recipient inbox for activity. Deduping
// on (activity id, recipient inbox) is handled by the repository's
// idempotent key.
func (q *Queue) Enqueue(ctx context.Context, activityID, activityType string, payload []byte, sender string, recipientInboxes []string) error {
	for _, inbox := range recipientInboxes {
		entry := &models.OutboxEntry{
			ActivityID:     activityID,
			ActivityType:   activityType,
			Payload:        string(payload),
			RecipientInbox: inbox,
			SenderAPID:     sender,
		}
		if err := q.repo.EnqueueDelivery(ctx, entry); err != nil {
			return fmt.Errorf("federation: enqueueing delivery to %s: %w", inbox, err)
		}
	}
	return nil
}

// DrainPending attempts every pending delivery once, sending with
// exponential backoff within each attempt's own deadline. Entries whose
// backoff is exhausted are marked failed; failed entries are no longer
// pending, so later DrainPending calls skip them until OutboxEntry.Retry
// resets them.
func (q *Queue) DrainPending(ctx context.Context, identity SenderIdentity, limit int) error {
	entries, err := q.repo.ListPendingDeliveries(ctx, limit)
	if err != nil {
		return fmt.Errorf("federation: listing pending deliveries: %w", err)
	}

	for _, entry := range entries {
		if err := q.deliverOne(ctx, entry, identity); err != nil {
			q.logger.Warn("delivery failed", "activity_id", entry.ActivityID, "inbox", entry.RecipientInbox, "error", err)
		}
	}
	return nil
}

func (q *Queue) deliverOne(ctx context.Context, entry models.OutboxEntry, identity SenderIdentity) error {
	deadlineCtx, cancel := context.WithTimeout(ctx, deliveryDeadline)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = deliveryDeadline

	operation := func() error {
		return q.send(deadlineCtx, entry, identity)
	}

	err := backoff.Retry(operation, backoff.WithContext(policy, deadlineCtx))
	if err != nil {
		if markErr := q.repo.MarkDeliveryFailed(ctx, entry.ID, err); markErr != nil {
			return fmt.Errorf("federation: marking delivery failed: %w", markErr)
		}
		return err
	}

	if err := q.repo.MarkDeliveryPublished(ctx, entry.ID); err != nil {
		return fmt.Errorf("federation: marking delivery published: %w", err)
	}
	return nil
}

func (q *Queue) send(ctx context.Context, entry models.OutboxEntry, identity SenderIdentity) error {
	body := []byte(entry.Payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, entry.RecipientInbox, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("federation: building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	if err := SignRequest(req, body, identity.APID+"#main-key", identity.PrivateKey); err != nil {
		return backoff.Permanent(fmt.Errorf("federation: signing delivery: %w", err))
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("federation: sending delivery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("federation: recipient returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return backoff.Permanent(fmt.Errorf("federation: recipient rejected delivery with %d", resp.StatusCode))
	}
	return nil
}

// publisher adapts a Queue into the narrow Publisher interface the
// editcontroller package depends on.
type publisher struct {
	queue        *Queue
	instanceAPID string
	identity     SenderIdentity
	followers    func(ctx context.Context) ([]models.Instance, error)
}

// NewPublisher builds the Publisher the editcontroller uses to emit
// UpdateArticle activities, fanning out to every accepted follower's
// inbox.
func NewPublisher(queue *Queue, instanceAPID string, identity SenderIdentity, followers func(ctx context.Context) ([]models.Instance, error)) Publisher {
	return &publisher{queue: queue, instanceAPID: instanceAPID, identity: identity, followers: followers}
}

func (p *publisher) PublishUpdateArticle(ctx context.Context, edit *models.Edit, article *models.Article) error {
	recipients, err := p.followers(ctx)
	if err != nil {
		return fmt.Errorf("federation: listing followers: %w", err)
	}
	if len(recipients) == 0 {
		return nil
	}

	activity := NewUpdateArticle(edit.APID+"#activity", p.instanceAPID, *NewApubEdit(edit), article.APID)
	payload, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("federation: marshaling UpdateArticle: %w", err)
	}

	inboxes := make([]string, 0, len(recipients))
	for _, r := range recipients {
		inboxes = append(inboxes, r.InboxURL)
	}

	return p.queue.Enqueue(ctx, activity.ID, activity.ActivityType(), payload, p.instanceAPID, inboxes)
}
