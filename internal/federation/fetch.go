package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// FetchInstance retrieves a remote instance's ApubInstance document over
// plain HTTP GET. The inbox dispatcher uses this the first time it sees
// an activity from an actor it has no local Instance row for yet, since
// verifying that actor's signature requires their public key.
func FetchInstance(ctx context.Context, client *http.Client, apID string) (*ApubInstance, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apID, nil)
	if err != nil {
		return nil, fmt.Errorf("federation: building actor fetch request: %w", err)
	}
	req.Header.Set("Accept", "application/activity+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("federation: fetching actor %s: %w", apID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("federation: actor fetch %s returned %d", apID, resp.StatusCode)
	}

	var doc ApubInstance
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("federation: decoding actor document: %w", err)
	}
	return &doc, nil
}
