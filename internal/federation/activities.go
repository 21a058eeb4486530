package federation

import (
	"encoding/json"
	"fmt"
)

// Activity is the tagged-sum interface every federation activity
// implements, dispatched on ActivityType the way the ActivityPub handler
// this package is grounded on switches on its own activity.Type field.
type Activity interface {
	ActivityType() string
}

// envelope is the common shape every activity shares on the wire, used
// only to sniff the type before decoding the full payload.
type envelope struct {
	Context string `json:"@context,omitempty"`
	Type    string `json:"type"`
	ID      string `json:"id"`
	Actor   string `json:"actor"`
}

// FollowActivity is sent when a local instance follows a peer.
type FollowActivity struct {
	Context string `json:"@context,omitempty"`
	Type    string `json:"type"`
	ID      string `json:"id"`
	Actor   string `json:"actor"`
	Object  string `json:"object"`
}

func (FollowActivity) ActivityType() string { return "Follow" }

// AcceptActivity answers a Follow.
type AcceptActivity struct {
	Context string       `json:"@context,omitempty"`
	Type    string       `json:"type"`
	ID      string       `json:"id"`
	Actor   string       `json:"actor"`
	Object  FollowActivity `json:"object"`
}

func (AcceptActivity) ActivityType() string { return "Accept" }

// CreateArticleActivity announces a new Article to followers.
type CreateArticleActivity struct {
	Context string      `json:"@context,omitempty"`
	Type    string      `json:"type"`
	ID      string      `json:"id"`
	Actor   string      `json:"actor"`
	Object  ApubArticle `json:"object"`
}

func (CreateArticleActivity) ActivityType() string { return "CreateArticle" }

// UpdateArticleActivity wraps an Edit applied to an existing Article.
type UpdateArticleActivity struct {
	Context       string   `json:"@context,omitempty"`
	Type          string   `json:"type"`
	ID            string   `json:"id"`
	Actor         string   `json:"actor"`
	Object        ApubEdit `json:"object"`
	TargetArticle string   `json:"targetArticle"`
}

func (UpdateArticleActivity) ActivityType() string { return "UpdateArticle" }

// DecodeActivity sniffs raw's "type" field and unmarshals into the
// matching concrete Activity, returning ErrUnknownActivityType for
// anything else.
func DecodeActivity(raw json.RawMessage) (Activity, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("federation: decoding activity envelope: %w", err)
	}

	switch env.Type {
	case "Follow":
		var a FollowActivity
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("federation: decoding Follow: %w", err)
		}
		return a, nil
	case "Accept":
		var a AcceptActivity
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("federation: decoding Accept: %w", err)
		}
		return a, nil
	case "CreateArticle":
		var a CreateArticleActivity
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("federation: decoding CreateArticle: %w", err)
		}
		return a, nil
	case "UpdateArticle":
		var a UpdateArticleActivity
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("federation: decoding UpdateArticle: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActivityType, env.Type)
	}
}

// NewFollow builds an outbound Follow activity from actor to object.
func NewFollow(id, actorAPID, objectAPID string) FollowActivity {
	return FollowActivity{
		Context: ActivityStreamsContext,
		Type:    "Follow",
		ID:      id,
		Actor:   actorAPID,
		Object:  objectAPID,
	}
}

// NewAccept builds an outbound Accept activity answering follow.
func NewAccept(id, actorAPID string, follow FollowActivity) AcceptActivity {
	return AcceptActivity{
		Context: ActivityStreamsContext,
		Type:    "Accept",
		ID:      id,
		Actor:   actorAPID,
		Object:  follow,
	}
}

// NewCreateArticle builds an outbound CreateArticle activity.
func NewCreateArticle(id, actorAPID string, article ApubArticle) CreateArticleActivity {
	return CreateArticleActivity{
		Context: ActivityStreamsContext,
		Type:    "CreateArticle",
		ID:      id,
		Actor:   actorAPID,
		Object:  article,
	}
}

// NewUpdateArticle builds an outbound UpdateArticle activity.
func NewUpdateArticle(id, actorAPID string, edit ApubEdit, targetArticleAPID string) UpdateArticleActivity {
	return UpdateArticleActivity{
		Context:       ActivityStreamsContext,
		Type:          "UpdateArticle",
		ID:            id,
		Actor:         actorAPID,
		Object:        edit,
		TargetArticle: targetArticleAPID,
	}
}
