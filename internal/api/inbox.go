package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/quillmesh/quillmesh/internal/articlestore"
	"github.com/quillmesh/quillmesh/internal/federation"
	"github.com/quillmesh/quillmesh/internal/models"
	"github.com/quillmesh/quillmesh/internal/repository"
	"github.com/quillmesh/quillmesh/pkg/diffengine"
	"github.com/quillmesh/quillmesh/pkg/versionid"
)

// inboxEnvelope is parsed before signature verification, matching
// spec.md §4.8 step 1: "parse body as JSON; extract type, id, actor".
type inboxEnvelope struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Actor string `json:"actor"`
}

// InboxHandler implements the InboxDispatcher of spec.md §4.8: verify
// signature, deduplicate by activity id, route to a handler. It serves
// both the shared instance inbox and, since per-person inboxes delegate
// to shared, the per-person inbox as well.
func InboxHandler(deps Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, writeJSONError(http.StatusBadRequest, "failed to read request body"))
			return
		}

		var env inboxEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			writeError(w, writeJSONError(http.StatusBadRequest, "malformed activity JSON"))
			return
		}

		actor, err := resolveActor(r.Context(), deps, env.Actor)
		if err != nil {
			deps.Logger.Warn("inbox: could not resolve actor", "actor", env.Actor, "error", err)
			writeError(w, writeJSONError(http.StatusUnauthorized, "unknown actor"))
			return
		}

		pubKey, err := federation.ParsePublicKey(actor.PublicKey)
		if err != nil {
			writeError(w, writeJSONError(http.StatusUnauthorized, "invalid actor public key"))
			return
		}
		if err := federation.VerifyRequest(r, pubKey); err != nil {
			writeError(w, err)
			return
		}

		already, err := deps.Repo.IsActivityProcessed(r.Context(), env.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if already {
			w.WriteHeader(http.StatusOK)
			return
		}

		activity, err := federation.DecodeActivity(json.RawMessage(body))
		if err != nil {
			writeError(w, err)
			return
		}

		if err := routeActivity(r.Context(), deps, actor, activity); err != nil {
			writeError(w, err)
			return
		}

		if err := deps.Repo.MarkActivityProcessed(r.Context(), env.ID); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusOK)
	})
}

// resolveActor looks an actor up locally, fetching and persisting their
// Instance document on first contact.
func resolveActor(ctx context.Context, deps Deps, actorAPID string) (*models.Instance, error) {
	if actorAPID == "" {
		return nil, fmt.Errorf("activity missing actor")
	}

	instance, err := deps.Repo.GetInstanceByAPID(ctx, actorAPID)
	if err == nil {
		return instance, nil
	}
	if err != repository.ErrNotFound {
		return nil, err
	}

	doc, err := federation.FetchInstance(ctx, deps.Queue.Client(), actorAPID)
	if err != nil {
		return nil, err
	}
	if err := doc.Verify(hostOf(actorAPID)); err != nil {
		return nil, err
	}

	instance = doc.IntoModel()
	if err := deps.Repo.CreateInstance(ctx, instance); err != nil {
		return nil, err
	}
	return instance, nil
}

// isDeniedDomain reports whether domain appears on denied, an exact
// case-insensitive match against each configured entry.
func isDeniedDomain(domain string, denied []string) bool {
	for _, d := range denied {
		if strings.EqualFold(domain, d) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func routeActivity(ctx context.Context, deps Deps, actor *models.Instance, activity federation.Activity) error {
	switch a := activity.(type) {
	case federation.FollowActivity:
		return handleFollow(ctx, deps, actor, a)
	case federation.AcceptActivity:
		return handleAccept(ctx, deps, actor)
	case federation.CreateArticleActivity:
		return handleCreateArticle(ctx, deps, actor, a)
	case federation.UpdateArticleActivity:
		return handleUpdateArticle(ctx, deps, actor, a)
	default:
		return fmt.Errorf("%w: %T", federation.ErrUnknownActivityType, activity)
	}
}

// handleFollow auto-accepts every Follow not sent by a deny-listed
// domain, records the actor in our followers, and queues an Accept
// reply. Queuing (rather than draining synchronously) is the one
// detached delivery spec.md §4.8 allows on the inbound path.
func handleFollow(ctx context.Context, deps Deps, actor *models.Instance, follow federation.FollowActivity) error {
	if isDeniedDomain(actor.Domain, deps.DeniedDomains) {
		return fmt.Errorf("%w: %s", federation.ErrActorDenied, actor.Domain)
	}

	local, err := deps.Repo.GetLocalInstance(ctx)
	if err != nil {
		return err
	}
	if _, err := deps.Repo.UpsertFollow(ctx, actor.ID, local.ID); err != nil {
		return err
	}
	if err := deps.Repo.AcceptFollow(ctx, actor.ID, local.ID); err != nil {
		return err
	}

	accept := federation.NewAccept(
		fmt.Sprintf("%s#accept-%s", local.APID, versionid.New(follow.ID).String()),
		local.APID, follow,
	)
	payload, err := json.Marshal(accept)
	if err != nil {
		return fmt.Errorf("api: marshaling Accept: %w", err)
	}
	return deps.Queue.Enqueue(ctx, accept.ID, accept.ActivityType(), payload, local.APID, []string{actor.InboxURL})
}

// handleAccept records the answering instance in our follows.
func handleAccept(ctx context.Context, deps Deps, actor *models.Instance) error {
	local, err := deps.Repo.GetLocalInstance(ctx)
	if err != nil {
		return err
	}
	if _, err := deps.Repo.UpsertFollow(ctx, local.ID, actor.ID); err != nil {
		return err
	}
	return deps.Repo.AcceptFollow(ctx, local.ID, actor.ID)
}

// handleCreateArticle inserts a replicated article keyed by ap_id,
// ignoring a duplicate delivery.
func handleCreateArticle(ctx context.Context, deps Deps, actor *models.Instance, create federation.CreateArticleActivity) error {
	if err := create.Object.Verify(actor.Domain); err != nil {
		return err
	}

	if _, err := deps.Repo.GetArticleByAPID(ctx, create.Object.ID); err == nil {
		return nil
	} else if err != repository.ErrNotFound {
		return err
	}

	article := create.Object.IntoModel()
	article.InstanceID = actor.ID
	return deps.Repo.CreateArticle(ctx, article)
}

// handleUpdateArticle reconstructs the edit's ancestor text and hands
// the rebuilt new_text to EditController, letting its merge state
// machine decide fast-forward, clean rebase, or conflict exactly as it
// would for a local edit.
func handleUpdateArticle(ctx context.Context, deps Deps, actor *models.Instance, update federation.UpdateArticleActivity) error {
	if err := update.Object.Verify(actor.Domain); err != nil {
		return err
	}

	article, err := deps.Store.GetArticleByAPID(ctx, update.TargetArticle)
	if err != nil {
		return err
	}

	previousVersion, err := versionid.Parse(update.Object.PreviousVersion)
	if err != nil {
		return writeJSONError(http.StatusBadRequest, "malformed previousVersion")
	}

	ancestorText, ok, err := deps.Store.TextAtVersion(ctx, article.ID, previousVersion)
	if err != nil || !ok {
		// previousVersion names no text we can reconstruct: spec.md §4.7
		// treats this exactly like a local UnknownBase, not a guess.
		return articlestore.ErrUnknownBase
	}

	newText, err := diffengine.Apply(ancestorText, update.Object.Diff)
	if err != nil {
		return articlestore.ErrUnknownBase
	}

	editor, err := ensureRemoteEditor(ctx, deps, actor)
	if err != nil {
		return err
	}

	_, err = deps.Controller.EditArticle(ctx, article.ID, newText, update.Object.Summary, previousVersion, editor.ID, nil, false)
	return err
}

// ensureRemoteEditor returns the placeholder Person quillmesh attributes
// inbound edits to, since UpdateArticle's actor is the sending Instance
// rather than an individual Person. Created lazily on first contact with
// a given instance.
func ensureRemoteEditor(ctx context.Context, deps Deps, instance *models.Instance) (*models.Person, error) {
	apID := instance.APID + "#person"
	person, err := deps.Repo.GetPersonByAPID(ctx, apID)
	if err == nil {
		return person, nil
	}
	if err != repository.ErrNotFound {
		return nil, err
	}

	person = &models.Person{
		Username:   instance.Domain,
		APID:       apID,
		InstanceID: instance.ID,
		Local:      false,
		PublicKey:  instance.PublicKey,
	}
	if err := deps.Repo.CreatePerson(ctx, person); err != nil {
		return nil, err
	}
	return person, nil
}
