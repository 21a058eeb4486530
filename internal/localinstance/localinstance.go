// Package localinstance holds this process's own Instance identity: the
// one row in the instances table with local == true. It mirrors the
// teacher's internal/instance package, generalized from a document
// management deployment's identity to a federation actor's identity and
// key material.
package localinstance

import (
	"context"
	"fmt"
	"sync"

	"github.com/quillmesh/quillmesh/internal/federation"
	"github.com/quillmesh/quillmesh/internal/models"
	"github.com/quillmesh/quillmesh/internal/repository"

	"github.com/hashicorp/go-hclog"
)

var (
	current   *models.Instance
	currentMu sync.RWMutex
)

// Initialize loads the local instance row, creating one (with a fresh
// RSA key pair) if this is the first run against this repository. It
// must be called once at startup before any federation operation.
func Initialize(ctx context.Context, repo repository.Repository, baseURL, domain string, logger hclog.Logger) error {
	currentMu.Lock()
	defer currentMu.Unlock()

	instance, err := repo.GetLocalInstance(ctx)
	if err == nil {
		current = instance
		logger.Info("local instance loaded", "ap_id", instance.APID, "domain", instance.Domain)
		return nil
	}
	if err != repository.ErrNotFound {
		return fmt.Errorf("localinstance: querying instance: %w", err)
	}

	pubPEM, privPEM, err := federation.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("localinstance: generating key pair: %w", err)
	}

	instance = &models.Instance{
		APID:       baseURL + "/instance",
		Domain:     domain,
		InboxURL:   baseURL + "/inbox",
		PublicKey:  pubPEM,
		PrivateKey: privPEM,
		Local:      true,
	}
	if err := repo.CreateInstance(ctx, instance); err != nil {
		return fmt.Errorf("localinstance: creating instance: %w", err)
	}

	current = instance
	logger.Info("local instance initialized", "ap_id", instance.APID, "domain", instance.Domain)
	return nil
}

// Current returns the local instance. Initialize must have been called
// first; Current returns nil otherwise.
func Current() *models.Instance {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// Identity returns the SenderIdentity used to sign outbound activities.
func Identity() (federation.SenderIdentity, error) {
	instance := Current()
	if instance == nil {
		return federation.SenderIdentity{}, fmt.Errorf("localinstance: not initialized")
	}
	privKey, err := federation.ParsePrivateKey(instance.PrivateKey)
	if err != nil {
		return federation.SenderIdentity{}, fmt.Errorf("localinstance: parsing private key: %w", err)
	}
	return federation.SenderIdentity{APID: instance.APID, PrivateKey: privKey}, nil
}

// ResetForTesting clears the package-level singleton. Only for test code.
func ResetForTesting() {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = nil
}
