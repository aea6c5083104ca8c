package syncclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"lakbay-kasaysayan/internal/achievement"
	"lakbay-kasaysayan/internal/artifact"
	"lakbay-kasaysayan/internal/auth"
	"lakbay-kasaysayan/internal/history"
	"lakbay-kasaysayan/internal/runs"
	"lakbay-kasaysayan/internal/runsession"

	"go.uber.org/zap"
)

// Resource names a collection FetchAll can list.
type Resource string

const (
	ResourceRuns             Resource = "runs"
	ResourceHistoricalEvents Resource = "historical-events"
	ResourceAchievements     Resource = "achievements"
	ResourceArtifacts        Resource = "artifacts"
)

// eventsPageSize is the largest page the backend serves.
const eventsPageSize = 100

func (c *Client) Register(ctx context.Context, req auth.RegisterRequest) (auth.Session, error) {
	var out auth.Session
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &out); err != nil {
		return auth.Session{}, err
	}
	return out, c.signIn(ctx, out)
}

// Login stores the returned token in the session context and the device store.
func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	if err := c.do(ctx, http.MethodPost, "/auth/login", auth.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return auth.Session{}, err
	}
	return out, c.signIn(ctx, out)
}

func (c *Client) signIn(ctx context.Context, s auth.Session) error {
	if c.session == nil || s.Token == "" {
		return nil
	}
	return c.session.SignIn(ctx, s.Token, s.User.ID)
}

// Me loads the signed-in user and remembers their id for later calls.
func (c *Client) Me(ctx context.Context) (auth.User, error) {
	var out auth.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return auth.User{}, err
	}
	if c.session != nil {
		c.session.SetUser(out.ID)
	}
	return out, nil
}

// Logout is local only: the token is forgotten and removed from the device.
func (c *Client) Logout(ctx context.Context) error {
	if c.session == nil {
		return nil
	}
	return c.session.Clear(ctx)
}

// PersistRun saves a finished run. The run id is minted on the device, so a retry
// of a write that already landed updates the same row.
func (c *Client) PersistRun(ctx context.Context, record runsession.Record) (runs.Run, error) {
	var out runs.Run
	if err := c.do(ctx, http.MethodPost, "/runs", record, &out); err != nil {
		return runs.Run{}, err
	}
	return out, nil
}

func (c *Client) UpdateRun(ctx context.Context, id string, patch runs.Update) (runs.Run, error) {
	var out runs.Run
	if err := c.do(ctx, http.MethodPut, "/runs/"+url.PathEscape(id), patch, &out); err != nil {
		return runs.Run{}, err
	}
	return out, nil
}

func (c *Client) DeleteRun(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/runs/"+url.PathEscape(id), nil, nil)
}

// PublishLive pushes in-progress stats to anyone watching this runner.
func (c *Client) PublishLive(ctx context.Context, runID string, stats runsession.Stats) error {
	update := runs.LiveUpdate{
		RunID:          runID,
		DistanceMeters: stats.DistanceMeters,
		ElapsedSeconds: stats.ElapsedSeconds,
		PaceMinPerKm:   stats.PaceMinPerKm,
	}
	return c.do(ctx, http.MethodPost, "/runs/"+url.PathEscape(runID)+"/live", update, nil)
}

// Collection is the outcome of PersistArtifactCollection. Remote is nil when the
// backend could not be reached; the local ledger has the artifact regardless.
type Collection struct {
	ArtifactID     string
	NewlyCollected bool
	CollectedCount int
	Remote         *artifact.Collection
}

// PersistArtifactCollection records the artifact in the local ledger first, then
// tells the backend. A remote failure is returned alongside the local result.
func (c *Client) PersistArtifactCollection(ctx context.Context, artifactID string) (Collection, error) {
	res := Collection{ArtifactID: artifactID}
	if c.artifacts != nil {
		added, err := c.artifacts.Add(ctx, artifactID)
		if err != nil {
			return res, fmt.Errorf("record artifact locally: %w", err)
		}
		res.NewlyCollected = added
		res.CollectedCount = c.artifacts.Len()
	}

	body := map[string]string{"userId": c.userID()}
	var remote artifact.Collection
	if err := c.do(ctx, http.MethodPost, "/artifacts/"+url.PathEscape(artifactID)+"/collect", body, &remote); err != nil {
		c.logger.Warn("artifact kept locally, remote sync failed", zap.String("artifact_id", artifactID), zap.Error(err))
		return res, err
	}
	res.Remote = &remote
	if c.artifacts == nil {
		res.NewlyCollected = remote.Newly
		res.CollectedCount = remote.CollectedCount
	}
	return res, nil
}

// CheckAchievements asks the backend to evaluate trigger for userID.
func (c *Client) CheckAchievements(ctx context.Context, userID string, trigger achievement.Trigger) (achievement.CheckResult, error) {
	metrics := trigger.Metrics
	req := achievement.CheckRequest{UserID: userID, Type: trigger.Type, Data: &metrics}
	var out achievement.CheckResult
	if err := c.do(ctx, http.MethodPost, "/achievements/check", req, &out); err != nil {
		return achievement.CheckResult{}, err
	}
	return out, nil
}

// FetchAll decodes one listing of resource into out. Runs and achievements are
// scoped to the signed-in user.
func (c *Client) FetchAll(ctx context.Context, resource Resource, out any) error {
	path := "/" + string(resource)
	switch resource {
	case ResourceRuns, ResourceAchievements:
		path += "?userId=" + url.QueryEscape(c.userID())
	case ResourceHistoricalEvents, ResourceArtifacts:
	default:
		return fmt.Errorf("unknown resource %q", resource)
	}
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Runs(ctx context.Context) ([]runs.Run, error) {
	var out []runs.Run
	err := c.FetchAll(ctx, ResourceRuns, &out)
	return out, err
}

func (c *Client) Achievements(ctx context.Context) ([]achievement.Achievement, error) {
	var out []achievement.Achievement
	err := c.FetchAll(ctx, ResourceAchievements, &out)
	return out, err
}

func (c *Client) Artifacts(ctx context.Context) ([]history.Artifact, error) {
	var out []history.Artifact
	err := c.FetchAll(ctx, ResourceArtifacts, &out)
	return out, err
}

// HistoricalEvents walks every page of the catalogue.
func (c *Client) HistoricalEvents(ctx context.Context) ([]history.Event, error) {
	var all []history.Event
	for page := 1; ; page++ {
		var p history.Page
		path := "/historical-events?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(eventsPageSize)
		if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Events...)
		if page >= p.TotalPages || len(p.Events) == 0 {
			return all, nil
		}
	}
}

func (c *Client) HistoricalEvent(ctx context.Context, id string) (history.Event, error) {
	var out history.Event
	err := c.do(ctx, http.MethodGet, "/historical-events/"+url.PathEscape(id), nil, &out)
	return out, err
}

// NearbyEvents lists events within radiusKm of the given point.
func (c *Client) NearbyEvents(ctx context.Context, lat, lon, radiusKm float64) ([]history.Event, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	var out []history.Event
	err := c.do(ctx, http.MethodGet, "/historical-events/nearby?"+q.Encode(), nil, &out)
	return out, err
}

func (c *Client) userID() string {
	if c.session == nil {
		return ""
	}
	return c.session.UserID()
}
