// Package riot is a typed, rate-limited client for the Riot Games API.
package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/riftwatch/backend/internal/ratelimit"
)

const defaultTimeout = 10 * time.Second

// Client issues Riot API requests. Every request passes through the rate
// limiter before any network attempt and carries the API key header.
type Client struct {
	key      string
	http     *http.Client
	limiter  *ratelimit.Limiter
	cooldown time.Duration

	// URL builders, overridden by tests to point at httptest servers.
	regionalBase func(region string) string
	clusterBase  func(cluster string) string
}

func NewClient(key string, limiter *ratelimit.Limiter, timeout, cooldown time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		key:      key,
		http:     &http.Client{Timeout: timeout},
		limiter:  limiter,
		cooldown: cooldown,
		regionalBase: func(region string) string {
			return "https://" + region + ".api.riotgames.com"
		},
		clusterBase: func(cluster string) string {
			return "https://" + cluster + ".api.riotgames.com"
		},
	}
}

// get performs one admitted GET. A 429 is retried once after the remote's
// Retry-After (or the configured cooldown); the retry is admitted again so
// local accounting stays honest.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	body, retryAfter, err := c.getOnce(ctx, rawURL)
	if !errors.Is(err, ErrRateLimited) {
		return body, err
	}

	// The client is shared by the monitor worker and request handlers, so
	// the delay stays local to this call instead of touching client state.
	if retryAfter <= 0 {
		retryAfter = c.cooldown
	}
	log.Printf("[riot] 429 from remote, retrying after %s", retryAfter)
	t := time.NewTimer(retryAfter)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}
	body, _, err = c.getOnce(ctx, rawURL)
	return body, err
}

// getOnce issues a single request. On a 429 the second return value carries
// the remote's Retry-After, when present.
func (c *Client) getOnce(ctx context.Context, rawURL string) ([]byte, time.Duration, error) {
	if err := c.limiter.Admit(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	req.Header.Set("X-Riot-Token", c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, 0, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, 0, ErrInvalidCredential
	case resp.StatusCode == http.StatusTooManyRequests:
		var retryAfter time.Duration
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, retryAfter, ErrRateLimited
	default:
		return nil, 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}

// ResolveAccount looks up a riot id on the given cluster and returns the
// stable account identity. ErrNotFound when the riot id does not exist.
func (c *Client) ResolveAccount(ctx context.Context, gameName, tagLine, cluster string) (Account, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.clusterBase(cluster), url.PathEscape(gameName), url.PathEscape(tagLine))

	body, err := c.get(ctx, u)
	if err != nil {
		return Account{}, err
	}

	var acct Account
	if err := json.Unmarshal(body, &acct); err != nil {
		return Account{}, fmt.Errorf("%w: decoding account: %v", ErrUnavailable, err)
	}
	return acct, nil
}

// SummonerByPUUID resolves the platform summoner record for a PUUID.
func (c *Client) SummonerByPUUID(ctx context.Context, puuid, region string) (Summoner, error) {
	u := fmt.Sprintf("%s/lol/summoner/v4/summoners/by-puuid/%s",
		c.regionalBase(region), url.PathEscape(puuid))

	body, err := c.get(ctx, u)
	if err != nil {
		return Summoner{}, err
	}

	var s Summoner
	if err := json.Unmarshal(body, &s); err != nil {
		return Summoner{}, fmt.Errorf("%w: decoding summoner: %v", ErrUnavailable, err)
	}
	return s, nil
}

// CurrentGame returns the player's live game, or nil when the player is not
// in one. The spectator endpoint answers 404 for "not in game", which is a
// normal result here, never an error.
func (c *Client) CurrentGame(ctx context.Context, puuid, region string) (*ActiveGame, error) {
	u := fmt.Sprintf("%s/lol/spectator/v5/active-games/by-summoner/%s",
		c.regionalBase(region), url.PathEscape(puuid))

	body, err := c.get(ctx, u)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var g ActiveGame
	if err := json.Unmarshal(body, &g); err != nil {
		return nil, fmt.Errorf("%w: decoding active game: %v", ErrUnavailable, err)
	}
	g.Raw = json.RawMessage(body)
	return &g, nil
}

// MatchIDs returns the player's most recent match ids, newest first.
func (c *Client) MatchIDs(ctx context.Context, puuid, cluster string, count int) ([]string, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?start=0&count=%d",
		c.clusterBase(cluster), url.PathEscape(puuid), count)

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, fmt.Errorf("%w: decoding match ids: %v", ErrUnavailable, err)
	}
	return ids, nil
}

// Match fetches the full detail payload for one match id. The payload is
// passed through opaque; callers forward it as-is.
func (c *Client) Match(ctx context.Context, matchID, cluster string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s",
		c.clusterBase(cluster), url.PathEscape(matchID))

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// VerifyCredential checks the API key against the platform status endpoint.
// Called once at startup so a bad key fails fast instead of silently
// degrading every poll cycle.
func (c *Client) VerifyCredential(ctx context.Context, region string) error {
	u := c.regionalBase(region) + "/lol/status/v4/platform-data"
	_, err := c.get(ctx, u)
	if errors.Is(err, ErrNotFound) {
		// Status endpoint absent on some test platforms; the key itself
		// was accepted, which is all this check cares about.
		return nil
	}
	return err
}
