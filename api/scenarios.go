/*
scenarios.go - Demo scenario loaders for development and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the ledger with realistic
	activity. Each scenario goes through the public ledger operations, so it
	is journaled and notified like any other traffic.

AVAILABLE SCENARIOS:

	mark-and-alice: Mark registers, posts three times and removes the first
	                post; Alice registers and likes Mark's second post
	random-crowd:   Generated accounts with posts, replies and likes

HOW SCENARIOS WORK:
 1. Register accounts
 2. Publish posts and replies
 3. Like posts

NOTE:

	The ledger is append-only, so scenarios add to the current state instead
	of resetting it. Loading mark-and-alice twice fails with 409. Routes are
	only mounted outside production.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "random-crowd", "accounts": 20, "seed": 42}
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/warp/microledger/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes a loadable scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	Accounts   int    `json:"accounts"` // random-crowd only
	Seed       int64  `json:"seed"`     // random-crowd only, 0 = random
}

var scenarios = []ScenarioDTO{
	{
		ID:          "mark-and-alice",
		Name:        "Mark and Alice",
		Description: "Two accounts, three posts with the first removed, one like",
	},
	{
		ID:          "random-crowd",
		Name:        "Random Crowd",
		Description: "Generated accounts posting, replying and liking",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario runs a predefined scenario against the ledger.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	before := h.Ledger.Stats()

	var err error
	switch req.ScenarioID {
	case "mark-and-alice":
		err = loadMarkAndAlice(ctx, h.Ledger)
	case "random-crowd":
		err = loadRandomCrowd(ctx, h.Ledger, req.Accounts, req.Seed)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		h.writeLedgerError(w, r, fmt.Errorf("load scenario %s: %w", req.ScenarioID, err))
		return
	}

	after := h.Ledger.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "loaded",
		"scenario":   req.ScenarioID,
		"operations": after.Operations - before.Operations,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadMarkAndAlice(ctx context.Context, l *ledger.Ledger) error {
	const mark, alice ledger.Identity = "0xMark", "0xAlice"

	if _, err := l.Register(ctx, mark, "mark", ""); err != nil {
		return err
	}

	var posts []ledger.PostID
	for _, msg := range []string{"Hi, I'm Mark", "Second post", "Third post"} {
		id, err := l.Post(ctx, mark, msg, ledger.NoReply)
		if err != nil {
			return err
		}
		posts = append(posts, id)
	}
	if err := l.RemovePost(ctx, mark, posts[0]); err != nil {
		return err
	}

	if _, err := l.Register(ctx, alice, "alice", ""); err != nil {
		return err
	}
	return l.Like(ctx, alice, posts[1])
}

func loadRandomCrowd(ctx context.Context, l *ledger.Ledger, accounts int, seed int64) error {
	if accounts <= 0 {
		accounts = 10
	}
	fake := gofakeit.New(seed)

	// identities are prefixed with the current operation count so repeated
	// loads never collide with earlier accounts
	prefix := l.Stats().Operations
	identities := make([]ledger.Identity, 0, accounts)
	for i := 0; i < accounts; i++ {
		identity := ledger.Identity(fmt.Sprintf("0x%x-%d-%s", prefix, i, fake.Username()))
		if _, err := l.Register(ctx, identity, fake.Username(), fake.URL()); err != nil {
			return err
		}
		identities = append(identities, identity)
	}

	var posts []ledger.PostID
	for _, who := range identities {
		for n := fake.Number(1, 3); n > 0; n-- {
			reply := ledger.NoReply
			if len(posts) > 0 && fake.Bool() {
				reply = posts[fake.Number(0, len(posts)-1)]
			}
			id, err := l.Post(ctx, who, fake.Sentence(fake.Number(3, 12)), reply)
			if err != nil {
				return err
			}
			posts = append(posts, id)
		}
	}

	for _, who := range identities {
		liked := make(map[ledger.PostID]bool)
		for n := fake.Number(0, 4); n > 0; n-- {
			id := posts[fake.Number(0, len(posts)-1)]
			if liked[id] {
				continue
			}
			if err := l.Like(ctx, who, id); err != nil {
				return err
			}
			liked[id] = true
		}
	}
	return nil
}
