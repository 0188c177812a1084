package clash

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"royale-monitor/internal/config"
	"royale-monitor/internal/constants"
	"royale-monitor/internal/domain"
	"royale-monitor/internal/metrics"
)

// Client talks to the Clash Royale REST API. 429s and transient network
// failures are retried with backoff internally, so callers only ever see
// success, ErrNotFound, ErrForbidden, or an exhausted-retry error.
type Client struct {
	baseURL string
	token   string
	client  *fasthttp.Client
	limiter *rate.Limiter
}

func New(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.ClashAPIBaseURL,
		token:   cfg.ClashAPIToken,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		limiter: rate.NewLimiter(rate.Every(constants.ClashRequestGap), 1),
	}
}

// NormalizeTag uppercases a player or clan tag and ensures the leading #.
func NormalizeTag(raw string) string {
	tag := strings.ToUpper(strings.TrimSpace(raw))
	if !strings.HasPrefix(tag, "#") {
		tag = "#" + tag
	}
	return tag
}

func encodeTag(tag string) string {
	return url.PathEscape(NormalizeTag(tag))
}

func (c *Client) GetPlayer(ctx context.Context, tag string) (*Player, error) {
	u := fmt.Sprintf("%s/players/%s", c.baseURL, encodeTag(tag))
	return doRequest[Player](ctx, c, "player", u)
}

// GetBattleLog returns the player's recent battles, newest first as served
// by the API. Ordering is not guaranteed and callers must not rely on it.
func (c *Client) GetBattleLog(ctx context.Context, tag string) ([]Battle, error) {
	u := fmt.Sprintf("%s/players/%s/battlelog", c.baseURL, encodeTag(tag))
	battles, err := doRequest[[]Battle](ctx, c, "battlelog", u)
	if err != nil {
		return nil, err
	}
	return *battles, nil
}

func (c *Client) GetUpcomingChests(ctx context.Context, tag string) (*UpcomingChests, error) {
	u := fmt.Sprintf("%s/players/%s/upcomingchests", c.baseURL, encodeTag(tag))
	return doRequest[UpcomingChests](ctx, c, "upcomingchests", u)
}

func (c *Client) GetClan(ctx context.Context, tag string) (*Clan, error) {
	u := fmt.Sprintf("%s/clans/%s", c.baseURL, encodeTag(tag))
	return doRequest[Clan](ctx, c, "clan", u)
}

func doRequest[T any](ctx context.Context, client *Client, endpoint, url string) (*T, error) {
	if err := client.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var result T
	backoff := retry.WithMaxRetries(constants.ClashRetryAttempts, retry.NewExponential(constants.ClashRetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set("Authorization", "Bearer "+client.token)

		var err error
		if deadline, ok := ctx.Deadline(); ok {
			err = client.client.DoDeadline(req, resp, deadline)
		} else {
			err = client.client.Do(req, resp)
		}
		if err != nil {
			return retry.RetryableError(fmt.Errorf("request failed: %w", err))
		}

		switch {
		case resp.StatusCode() == fasthttp.StatusOK:
			if err := json.Unmarshal(resp.Body(), &result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		case resp.StatusCode() == fasthttp.StatusNotFound:
			return domain.ErrNotFound
		case resp.StatusCode() == fasthttp.StatusForbidden:
			return domain.ErrForbidden
		case resp.StatusCode() == fasthttp.StatusTooManyRequests:
			return retry.RetryableError(domain.ErrRateLimited)
		case resp.StatusCode() >= 500:
			return retry.RetryableError(fmt.Errorf("upstream error: %d", resp.StatusCode()))
		default:
			return fmt.Errorf("unexpected status %d", resp.StatusCode())
		}
	})
	if err != nil {
		metrics.ClashRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}

	metrics.ClashRequests.WithLabelValues(endpoint, "ok").Inc()
	return &result, nil
}

type Battle struct {
	BattleTime string       `json:"battleTime"`
	Type       string       `json:"type"`
	GameMode   GameMode     `json:"gameMode"`
	Arena      Arena        `json:"arena"`
	Team       []BattleSide `json:"team"`
	Opponent   []BattleSide `json:"opponent"`
}

type GameMode struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Arena struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type BattleSide struct {
	Tag              string `json:"tag"`
	Name             string `json:"name"`
	Crowns           int    `json:"crowns"`
	StartingTrophies int    `json:"startingTrophies"`
	TrophyChange     int    `json:"trophyChange"`
	Cards            []Card `json:"cards"`
}

type Card struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

type Player struct {
	Tag                   string      `json:"tag"`
	Name                  string      `json:"name"`
	ExpLevel              int         `json:"expLevel"`
	Trophies              int         `json:"trophies"`
	BestTrophies          int         `json:"bestTrophies"`
	Wins                  int         `json:"wins"`
	Losses                int         `json:"losses"`
	BattleCount           int         `json:"battleCount"`
	ThreeCrownWins        int         `json:"threeCrownWins"`
	ChallengeCardsWon     int         `json:"challengeCardsWon"`
	ChallengeMaxWins      int         `json:"challengeMaxWins"`
	TournamentCardsWon    int         `json:"tournamentCardsWon"`
	TournamentBattleCount int         `json:"tournamentBattleCount"`
	Role                  string      `json:"role"`
	Donations             int         `json:"donations"`
	DonationsReceived     int         `json:"donationsReceived"`
	TotalDonations        int         `json:"totalDonations"`
	WarDayWins            int         `json:"warDayWins"`
	ClanCardsCollected    int         `json:"clanCardsCollected"`
	Arena                 Arena       `json:"arena"`
	Clan                  *PlayerClan `json:"clan,omitempty"`
	Cards                 []Card      `json:"cards"`
	CurrentDeck           []Card      `json:"currentDeck"`
}

type PlayerClan struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
}

type Clan struct {
	Tag              string `json:"tag"`
	Name             string `json:"name"`
	ClanScore        int    `json:"clanScore"`
	ClanWarTrophies  int    `json:"clanWarTrophies"`
	Members          int    `json:"members"`
	RequiredTrophies int    `json:"requiredTrophies"`
	DonationsPerWeek int    `json:"donationsPerWeek"`
}

type UpcomingChests struct {
	Items []Chest `json:"items"`
}

type Chest struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}
