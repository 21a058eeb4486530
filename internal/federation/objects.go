package federation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/quillmesh/quillmesh/internal/models"
)

// ActivityStreamsContext is the JSON-LD context every outbound document
// carries.
const ActivityStreamsContext = "https://www.w3.org/ns/activitystreams"

var (
	// ErrDomainMismatch means the object id's host does not match the
	// domain that delivered it.
	ErrDomainMismatch = errors.New("federation: object id domain does not match delivering domain")
	// ErrSignatureInvalid means the inbound HTTP signature did not verify.
	ErrSignatureInvalid = errors.New("federation: signature invalid")
	// ErrUnknownActivityType means DecodeActivity saw a "type" it does
	// not recognize.
	ErrUnknownActivityType = errors.New("federation: unknown activity type")
	// ErrActorDenied means the sending instance's domain is on this
	// instance's deny-list and may not establish a Follow relationship.
	ErrActorDenied = errors.New("federation: actor is deny-listed")
)

// ApubInstance is the wire form of Instance, an ActivityPub "Service".
type ApubInstance struct {
	Context   string `json:"@context,omitempty"`
	Type      string `json:"type"`
	ID        string `json:"id"`
	Inbox     string `json:"inbox"`
	PublicKey PublicKeyDoc `json:"publicKey"`
}

// PublicKeyDoc is the nested publicKey object ActivityPub actors carry.
type PublicKeyDoc struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// NewApubInstance renders a local or remote Instance as its wire form.
func NewApubInstance(instance *models.Instance) *ApubInstance {
	return &ApubInstance{
		Context: ActivityStreamsContext,
		Type:    "Service",
		ID:      instance.APID,
		Inbox:   instance.InboxURL,
		PublicKey: PublicKeyDoc{
			ID:           instance.APID + "#main-key",
			Owner:        instance.APID,
			PublicKeyPem: instance.PublicKey,
		},
	}
}

// IntoModel produces the Instance fields derivable from the wire form.
// local is always forced false and LastRefreshedAt stamped now, matching
// spec.md §4.6's round-trip rule for inbound objects.
func (a *ApubInstance) IntoModel() *models.Instance {
	host, _ := hostOf(a.ID)
	return &models.Instance{
		APID:            a.ID,
		Domain:          host,
		InboxURL:        a.Inbox,
		PublicKey:       a.PublicKey.PublicKeyPem,
		Local:           false,
		LastRefreshedAt: time.Now().UTC(),
	}
}

// Verify checks that a's id shares a host with deliveringDomain.
func (a *ApubInstance) Verify(deliveringDomain string) error {
	return verifyDomain(a.ID, deliveringDomain)
}

// ApubPerson is the wire form of Person, an ActivityPub "Person".
type ApubPerson struct {
	Context           string       `json:"@context,omitempty"`
	Type              string       `json:"type"`
	ID                string       `json:"id"`
	PreferredUsername string       `json:"preferredUsername"`
	Inbox             string       `json:"inbox"`
	PublicKey         PublicKeyDoc `json:"publicKey"`
}

// NewApubPerson renders a Person as its wire form. inboxURL is the
// owning instance's inbox, since persons do not carry their own.
func NewApubPerson(person *models.Person, inboxURL string) *ApubPerson {
	return &ApubPerson{
		Context:           ActivityStreamsContext,
		Type:              "Person",
		ID:                person.APID,
		PreferredUsername: person.Username,
		Inbox:             inboxURL,
		PublicKey: PublicKeyDoc{
			ID:           person.APID + "#main-key",
			Owner:        person.APID,
			PublicKeyPem: person.PublicKey,
		},
	}
}

// IntoModel produces the Person fields derivable from the wire form.
func (a *ApubPerson) IntoModel() *models.Person {
	return &models.Person{
		Username:  a.PreferredUsername,
		APID:      a.ID,
		Local:     false,
		PublicKey: a.PublicKey.PublicKeyPem,
	}
}

// Verify checks that a's id shares a host with deliveringDomain.
func (a *ApubPerson) Verify(deliveringDomain string) error {
	return verifyDomain(a.ID, deliveringDomain)
}

// ApubArticle is the wire form of Article, an ActivityPub "Article".
type ApubArticle struct {
	Context       string `json:"@context,omitempty"`
	Type          string `json:"type"`
	ID            string `json:"id"`
	Name          string `json:"name"`
	Content       string `json:"content"`
	AttributedTo  string `json:"attributedTo"`
	Protected     bool   `json:"protected"`
}

// NewApubArticle renders an Article as its wire form.
func NewApubArticle(article *models.Article, instanceAPID string) *ApubArticle {
	return &ApubArticle{
		Context:      ActivityStreamsContext,
		Type:         "Article",
		ID:           article.APID,
		Name:         article.Title,
		Content:      article.Text,
		AttributedTo: instanceAPID,
		Protected:    article.Protected,
	}
}

// IntoModel produces the Article fields derivable from the wire form.
func (a *ApubArticle) IntoModel() *models.Article {
	return &models.Article{
		APID:      a.ID,
		Title:     a.Name,
		Text:      a.Content,
		Protected: a.Protected,
		Local:     false,
	}
}

// Verify checks that a's id shares a host with deliveringDomain.
func (a *ApubArticle) Verify(deliveringDomain string) error {
	return verifyDomain(a.ID, deliveringDomain)
}

// ApubEdit is the wire form of Edit, a custom "Edit" object type.
type ApubEdit struct {
	Context         string `json:"@context,omitempty"`
	Type            string `json:"type"`
	ID              string `json:"id"`
	Diff            string `json:"diff"`
	PreviousVersion string `json:"previousVersion"`
	Summary         string `json:"summary,omitempty"`
}

// NewApubEdit renders an Edit as its wire form.
func NewApubEdit(edit *models.Edit) *ApubEdit {
	return &ApubEdit{
		Context:         ActivityStreamsContext,
		Type:            "Edit",
		ID:              edit.APID,
		Diff:            edit.Diff,
		PreviousVersion: edit.PreviousID.String(),
		Summary:         edit.Summary,
	}
}

// Verify checks that a's id shares a host with deliveringDomain.
func (a *ApubEdit) Verify(deliveringDomain string) error {
	return verifyDomain(a.ID, deliveringDomain)
}

// MarshalObject is a small convenience wrapper so callers don't need to
// know which concrete Apub* type they're serializing.
func MarshalObject(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("federation: parsing id %q: %w", rawURL, err)
	}
	return u.Host, nil
}

func verifyDomain(id, deliveringDomain string) error {
	host, err := hostOf(id)
	if err != nil {
		return err
	}
	if host != deliveringDomain {
		return fmt.Errorf("%w: id host %q, delivering domain %q", ErrDomainMismatch, host, deliveringDomain)
	}
	return nil
}
