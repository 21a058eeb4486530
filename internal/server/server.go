// Package server wires quillmeshd's collaborators into an http.Server
// and owns its listen/serve/shutdown lifecycle and background delivery
// drain loop, the way the teacher's internal/server package wires its
// search/workspace/Jira providers into Hermes's HTTP surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/quillmesh/quillmesh/internal/api"
	"github.com/quillmesh/quillmesh/internal/articlestore"
	"github.com/quillmesh/quillmesh/internal/config"
	"github.com/quillmesh/quillmesh/internal/conflicts"
	"github.com/quillmesh/quillmesh/internal/editcontroller"
	"github.com/quillmesh/quillmesh/internal/federation"
	"github.com/quillmesh/quillmesh/internal/localinstance"
	"github.com/quillmesh/quillmesh/internal/models"
	"github.com/quillmesh/quillmesh/internal/repository"

	"github.com/hashicorp/go-hclog"
)

// Server holds every collaborator quillmeshd needs, the HTTP server
// built from them, and the background federation drain loop.
type Server struct {
	Config *config.Config
	Logger hclog.Logger

	Repo       repository.Repository
	Store      *articlestore.Store
	Conflicts  *conflicts.Registry
	Controller *editcontroller.Controller
	Queue      *federation.Queue

	httpServer *http.Server
}

// New constructs a Server from repo and cfg. It assumes
// localinstance.Initialize has already been called against repo, since
// the outbound publisher and the inbox dispatcher both need the local
// instance's identity to be resolvable.
func New(cfg *config.Config, repo repository.Repository, logger hclog.Logger) *Server {
	registry := conflicts.NewRegistry()
	store := articlestore.New(repo, registry, logger)
	queue := federation.NewQueue(repo, logger)

	publisher := federation.NewPublisher(queue, localinstance.Current().APID, mustIdentity(logger), func(ctx context.Context) ([]models.Instance, error) {
		local := localinstance.Current()
		return repo.ListFollowers(ctx, local.ID)
	})
	controller := editcontroller.New(store, registry, publisher, logger)

	s := &Server{
		Config:     cfg,
		Logger:     logger,
		Repo:       repo,
		Store:      store,
		Conflicts:  registry,
		Controller: controller,
		Queue:      queue,
	}

	deps := api.Deps{
		BaseURL:       cfg.BaseURL,
		Repo:          repo,
		Store:         store,
		Controller:    controller,
		Conflicts:     registry,
		Queue:         queue,
		Logger:        logger,
		LocalInstance: localinstance.Current,
		Identity:      localinstance.Identity,
		DeniedDomains: cfg.Federation.DeniedDomains,
	}

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: api.NewRouter(deps),
	}

	return s
}

// mustIdentity panics if the local instance's key material can't be
// parsed, which would mean localinstance.Initialize was skipped or the
// stored key is corrupt — either way not a condition New should try to
// recover from.
func mustIdentity(logger hclog.Logger) federation.SenderIdentity {
	identity, err := localinstance.Identity()
	if err != nil {
		logger.Error("failed to load local instance identity", "error", err)
		panic(fmt.Sprintf("server: %v", err))
	}
	return identity
}

// ListenAndServe starts the HTTP server and the federation drain loop,
// blocking until ctx is canceled, then shuts both down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("listening", "addr", s.Config.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server: %w", err)
			return
		}
		errCh <- nil
	}()

	drainDone := s.runDrainLoop(ctx)

	select {
	case err := <-errCh:
		<-drainDone
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		<-drainDone
		return err
	}
}

// runDrainLoop periodically attempts every pending outbound delivery,
// returning a channel closed once the loop has observed ctx's
// cancellation and exited.
func (s *Server) runDrainLoop(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	interval := time.Duration(s.Config.Federation.DrainIntervalSeconds) * time.Second
	batch := s.Config.Federation.DrainBatchSize

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				identity, err := localinstance.Identity()
				if err != nil {
					s.Logger.Warn("drain loop: local identity unavailable", "error", err)
					continue
				}
				if err := s.Queue.DrainPending(ctx, identity, batch); err != nil {
					s.Logger.Warn("drain loop failed", "error", err)
				}
			}
		}
	}()

	return done
}
