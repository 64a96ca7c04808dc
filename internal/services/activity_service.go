package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/olushako/vaulty/internal/crypto"
	"github.com/olushako/vaulty/internal/metrics"
	"github.com/olushako/vaulty/internal/payload"
	"github.com/olushako/vaulty/internal/store"
)

const (
	// RedactedMask replaces request fields that always carry secrets.
	RedactedMask = "***REDACTED***"
	// ExposedMask replaces response fields caught carrying a live
	// confidential value.
	ExposedMask = "***EXPOSED***"

	// maxPayloadBytes caps how much of a captured body is persisted.
	maxPayloadBytes = 10 * 1024

	// DefaultWindow is the listing window when no explicit range is given.
	DefaultWindow = 7 * 24 * time.Hour
)

// requestMaskFields are request payload fields that are always redacted
// before persistence, whether or not their values were tracked.
var requestMaskFields = map[string]bool{
	"value":        true,
	"token":        true,
	"master_token": true,
}

// ActivityService records API calls and serves activity queries.
type ActivityService struct {
	store     store.Store
	retention time.Duration
}

// NewActivityService creates a new ActivityService.
func NewActivityService(s store.Store, retention time.Duration) *ActivityService {
	if retention <= 0 {
		retention = DefaultWindow
	}
	return &ActivityService{store: s, retention: retention}
}

// Record is the capture of one API call, handed over by the middleware after
// the response is written.
type Record struct {
	Method string
	Path   string
	// Action overrides the derived action name. MCP tool calls set it to the
	// tool name; HTTP captures leave it empty.
	Action      string
	ProjectName string
	// ProjectID is the fallback when the path carries no project name but
	// the credential is project scoped.
	ProjectID    string
	TokenType  string
	StatusCode int
	Duration   time.Duration
	// RequestHeaders is the captured header subset. The caller masks the
	// bearer token before handing the record over.
	RequestHeaders map[string]string
	RequestBody    []byte
	ResponseBody   []byte
	Source         string
	ClientIP       string
	Tracker        *ConfidentialTracker
}

// Log persists one activity record. It never returns an error: a vault
// operation must not fail because its audit trail could not be written.
// Failures are logged and dropped.
func (s *ActivityService) Log(ctx context.Context, rec Record) {
	activity, err := s.build(rec)
	if err != nil {
		slog.Error("failed to build activity record", "path", rec.Path, "error", err)
		return
	}
	if err := s.store.AppendActivity(activity); err != nil {
		slog.Error("failed to persist activity record", "path", rec.Path, "error", err)
	}
}

func (s *ActivityService) build(rec Record) (*store.Activity, error) {
	id, err := crypto.NewID()
	if err != nil {
		return nil, err
	}

	if rec.ProjectName == "" && rec.ProjectID != "" {
		if project, err := s.store.GetProject(rec.ProjectID); err == nil {
			rec.ProjectName = project.Name
		}
	}

	activity := &store.Activity{
		ID:          id,
		Method:      rec.Method,
		Path:        rec.Path,
		Action:      rec.Action,
		ProjectName: rec.ProjectName,
		TokenType:   rec.TokenType,
		StatusCode:     rec.StatusCode,
		ExecutionMS:    rec.Duration.Milliseconds(),
		RequestHeaders: rec.RequestHeaders,
		Source:         rec.Source,
		ClientIP:       rec.ClientIP,
		CreatedAt:      time.Now().UTC(),
	}
	if activity.Action == "" {
		activity.Action = deriveAction(rec.Method, rec.Path)
	}
	if activity.TokenType == "" {
		activity.TokenType = "none"
	}

	// Request side: structural field masking only. A confidential value in a
	// request is the caller sending data in, never an exposure.
	if req := capture(rec.RequestBody); req != nil {
		req.MaskFields(requestMaskFields, RedactedMask)
		activity.RequestPayload = req
	}

	// Response side: any string equal to a value materialized during this
	// call is replaced whole and flips the exposure flag.
	if resp := capture(rec.ResponseBody); resp != nil {
		if rec.Tracker != nil && rec.Tracker.Len() > 0 {
			exposed := resp.ReplaceStrings(func(v string) (string, bool) {
				if rec.Tracker.Contains(v) {
					return ExposedMask, true
				}
				return "", false
			})
			activity.Exposed = exposed
			if exposed {
				metrics.ExposuresTotal.Inc()
			}
		}
		activity.ResponsePayload = resp
	}

	return activity, nil
}

// capture parses a body into a payload tree. Oversized or non-JSON bodies
// collapse to a marker string rather than being dropped.
func capture(body []byte) *payload.Value {
	if len(body) == 0 {
		return nil
	}
	if len(body) > maxPayloadBytes {
		return payload.Str("[payload truncated]")
	}
	v, err := payload.FromJSON(body)
	if err != nil {
		return payload.Str("[non-json payload]")
	}
	return v
}

// MaskBearer masks the token in an Authorization header value, keeping the
// scheme and the first and last four characters.
func MaskBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return crypto.MaskToken(header)
	}
	return parts[0] + " " + crypto.MaskToken(parts[1])
}

// deriveAction names the operation from its method and path, e.g.
// "get_secret" or "create_project".
func deriveAction(method, path string) string {
	segs := splitPath(path)
	if len(segs) == 0 || segs[0] != "api" {
		return strings.ToLower(method)
	}
	segs = segs[1:]

	var resource string
	var hasItem bool
	var verb string

	switch {
	case len(segs) == 0:
		return strings.ToLower(method)
	case segs[0] == "projects" && len(segs) >= 3:
		// /api/projects/{name}/<sub>...
		resource = segs[2]
		hasItem = len(segs) >= 4
		if len(segs) >= 5 {
			verb = segs[4]
		}
	default:
		resource = segs[0]
		hasItem = len(segs) >= 2
		if len(segs) >= 3 {
			verb = segs[2]
		}
	}

	singular := strings.TrimSuffix(strings.ReplaceAll(resource, "-", "_"), "s")

	if verb != "" {
		return strings.ReplaceAll(verb, "-", "_") + "_" + singular
	}

	switch method {
	case "GET":
		if hasItem {
			return "get_" + singular
		}
		return "list_" + singular + "s"
	case "POST":
		return "create_" + singular
	case "PUT", "PATCH":
		return "update_" + singular
	case "DELETE":
		if hasItem {
			return "delete_" + singular
		}
		return "flush_" + singular + "s"
	default:
		return strings.ToLower(method) + "_" + singular
	}
}

func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// Filter selects activities for listing.
type Filter struct {
	// Since bounds the range; zero means the default 7-day window.
	Since time.Time
	// Method filters by HTTP method when non-empty.
	Method string
	// ExposedOnly keeps only records that exposed confidential data.
	ExposedOnly bool
	// Source filters by origin: ui, api, mcp select the recorded source;
	// root, project, device select the token tier; exposed is an alias for
	// ExposedOnly.
	Source string
	// Breakdown plus BreakdownValue narrow to one dimension member:
	// project, secret, token, device, mcp_tool.
	Breakdown      string
	BreakdownValue string
	// ExcludeUI drops records originating from the dashboard UI.
	ExcludeUI bool
	// Limit/Offset paginate; Limit 0 means 50.
	Limit  int
	Offset int
}

// Page is one page of activity results.
type Page struct {
	Activities []*store.Activity `json:"activities"`
	Total      int               `json:"total"`
	HasMore    bool              `json:"has_more"`
}

// List returns activities visible to the credential, newest first. Project
// credentials only ever see their own project's records.
func (s *ActivityService) List(ctx context.Context, auth *AuthContext, filter Filter) (*Page, error) {
	scopeName, err := s.scopeName(auth)
	if err != nil {
		return nil, err
	}

	since := filter.Since
	if since.IsZero() {
		since = time.Now().UTC().Add(-DefaultWindow)
	}

	all, err := s.store.ListActivitiesSince(since)
	if err != nil {
		return nil, mapStoreError(err)
	}

	var matched []*store.Activity
	for _, a := range all {
		if scopeName != "" && a.ProjectName != scopeName {
			continue
		}
		if matches(a, filter) {
			matched = append(matched, a)
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := matched[offset:end]
	if page == nil {
		page = []*store.Activity{}
	}
	return &Page{
		Activities: page,
		Total:      total,
		HasMore:    end < total,
	}, nil
}

func matches(a *store.Activity, f Filter) bool {
	if f.Method != "" && a.Method != f.Method {
		return false
	}
	if f.ExposedOnly && !a.Exposed {
		return false
	}
	if f.ExcludeUI && a.Source == "ui" {
		return false
	}

	switch f.Source {
	case "":
	case "ui", "api", "mcp":
		if a.Source != f.Source {
			return false
		}
	case "root":
		if a.TokenType != string(TokenMaster) {
			return false
		}
	case "project":
		if a.TokenType != string(TokenProject) {
			return false
		}
	case "device":
		if a.TokenType != string(TokenDevice) {
			return false
		}
	case "exposed":
		if !a.Exposed {
			return false
		}
	default:
		return false
	}

	if f.Breakdown != "" && f.BreakdownValue != "" {
		switch f.Breakdown {
		case "project":
			if a.ProjectName != f.BreakdownValue {
				return false
			}
		case "secret":
			if !strings.Contains(a.Path, "/secrets/"+f.BreakdownValue) {
				return false
			}
		case "token":
			if a.TokenType != f.BreakdownValue {
				return false
			}
		case "device":
			if !strings.Contains(a.Path, "/devices/"+f.BreakdownValue) {
				return false
			}
		case "mcp_tool":
			if a.Source != "mcp" || a.Action != f.BreakdownValue {
				return false
			}
		default:
			return false
		}
	}

	return true
}

// scopeName returns the project name a non-master credential is confined to,
// or "" for full visibility. Device credentials cannot query activities.
func (s *ActivityService) scopeName(auth *AuthContext) (string, error) {
	if auth == nil {
		return "", Unauthorized("missing bearer token")
	}
	switch auth.Type {
	case TokenMaster:
		return "", nil
	case TokenProject:
		project, err := s.store.GetProject(auth.ProjectID)
		if err != nil {
			return "", mapStoreError(err)
		}
		return project.Name, nil
	default:
		return "", Forbidden("device tokens cannot query activities")
	}
}

// FlushProject deletes the named project's activities and returns the count.
func (s *ActivityService) FlushProject(ctx context.Context, auth *AuthContext, projectName string) (int, error) {
	project, err := s.store.GetProjectByName(projectName)
	if err != nil {
		return 0, mapStoreError(err)
	}
	if err := requireProjectAccess(auth, project.ID); err != nil {
		return 0, err
	}
	if err := requireWrite(auth); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteActivitiesByProject(project.Name)
	if err != nil {
		return 0, mapStoreError(err)
	}
	return n, nil
}

// FlushAll deletes every activity record. Master only.
func (s *ActivityService) FlushAll(ctx context.Context, auth *AuthContext) (int, error) {
	if err := requireMaster(auth); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteAllActivities()
	if err != nil {
		return 0, mapStoreError(err)
	}
	return n, nil
}

// Purge removes activities older than the retention period. It is run by the
// background cleanup loop and once at startup.
func (s *ActivityService) Purge(ctx context.Context) (int, error) {
	return s.store.PurgeActivitiesBefore(time.Now().UTC().Add(-s.retention))
}

// DayStats aggregates one day of activity.
type DayStats struct {
	Date        string         `json:"date"`
	Total       int            `json:"total"`
	Exposed     int            `json:"exposed"`
	BySource    map[string]int `json:"by_source"`
	ByTokenType map[string]int `json:"by_token_type"`
	AvgMS       float64        `json:"avg_execution_ms"`
}

// DailyStats returns per-day aggregates for the trailing seven days, oldest
// day first.
func (s *ActivityService) DailyStats(ctx context.Context, auth *AuthContext) ([]*DayStats, error) {
	scopeName, err := s.scopeName(auth)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	start := now.Add(-DefaultWindow).Truncate(24 * time.Hour)
	all, err := s.store.ListActivitiesSince(start)
	if err != nil {
		return nil, mapStoreError(err)
	}

	byDay := make(map[string]*DayStats)
	sums := make(map[string]int64)
	for _, a := range all {
		if scopeName != "" && a.ProjectName != scopeName {
			continue
		}
		date := a.CreatedAt.Format("2006-01-02")
		day, ok := byDay[date]
		if !ok {
			day = &DayStats{Date: date, BySource: make(map[string]int), ByTokenType: make(map[string]int)}
			byDay[date] = day
		}
		day.Total++
		if a.Exposed {
			day.Exposed++
		}
		day.BySource[a.Source]++
		day.ByTokenType[a.TokenType]++
		sums[date] += a.ExecutionMS
	}

	var out []*DayStats
	for d := start; !d.After(now); d = d.Add(24 * time.Hour) {
		date := d.Format("2006-01-02")
		day, ok := byDay[date]
		if !ok {
			day = &DayStats{Date: date, BySource: map[string]int{}, ByTokenType: map[string]int{}}
		}
		if day.Total > 0 {
			day.AvgMS = float64(sums[date]) / float64(day.Total)
		}
		out = append(out, day)
	}
	return out, nil
}

// ProjectStats aggregates activity per project.
type ProjectStats struct {
	ProjectName  string     `json:"project_name"`
	Total        int        `json:"total"`
	Exposed      int        `json:"exposed"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// PerProjectStats returns per-project aggregates over the trailing seven
// days, visible projects only.
func (s *ActivityService) PerProjectStats(ctx context.Context, auth *AuthContext) ([]*ProjectStats, error) {
	scopeName, err := s.scopeName(auth)
	if err != nil {
		return nil, err
	}

	all, err := s.store.ListActivitiesSince(time.Now().UTC().Add(-DefaultWindow))
	if err != nil {
		return nil, mapStoreError(err)
	}

	byProject := make(map[string]*ProjectStats)
	var order []string
	for _, a := range all {
		if a.ProjectName == "" {
			continue
		}
		if scopeName != "" && a.ProjectName != scopeName {
			continue
		}
		st, ok := byProject[a.ProjectName]
		if !ok {
			st = &ProjectStats{ProjectName: a.ProjectName}
			byProject[a.ProjectName] = st
			order = append(order, a.ProjectName)
		}
		st.Total++
		if a.Exposed {
			st.Exposed++
		}
		if st.LastActivity == nil || a.CreatedAt.After(*st.LastActivity) {
			at := a.CreatedAt
			st.LastActivity = &at
		}
	}

	out := make([]*ProjectStats, 0, len(order))
	for _, name := range order {
		out = append(out, byProject[name])
	}
	return out, nil
}

// DashboardStats is the entity and exposure summary for the overview screen.
type DashboardStats struct {
	Projects       int `json:"projects"`
	Secrets        int `json:"secrets"`
	Devices        int `json:"devices"`
	PendingDevices int `json:"pending_devices"`
	MasterTokens   int `json:"master_tokens"`
	Activities7d   int `json:"activities_7d"`
	Exposures7d    int `json:"exposures_7d"`
}

// Dashboard returns entity counts plus the 7-day activity and exposure
// totals. Master only; the dashboard spans every project.
func (s *ActivityService) Dashboard(ctx context.Context, auth *AuthContext) (*DashboardStats, error) {
	if err := requireMaster(auth); err != nil {
		return nil, err
	}

	stats := &DashboardStats{}

	projects, err := s.store.ListProjects()
	if err != nil {
		return nil, mapStoreError(err)
	}
	stats.Projects = len(projects)

	stats.Secrets, err = s.store.CountSecrets()
	if err != nil {
		return nil, mapStoreError(err)
	}

	devices, err := s.store.ListAllDevices()
	if err != nil {
		return nil, mapStoreError(err)
	}
	stats.Devices = len(devices)
	for _, d := range devices {
		if d.Status == store.DevicePending {
			stats.PendingDevices++
		}
	}

	stats.MasterTokens, err = s.store.CountMasterTokens()
	if err != nil {
		return nil, mapStoreError(err)
	}

	recent, err := s.store.ListActivitiesSince(time.Now().UTC().Add(-DefaultWindow))
	if err != nil {
		return nil, mapStoreError(err)
	}
	stats.Activities7d = len(recent)
	for _, a := range recent {
		if a.Exposed {
			stats.Exposures7d++
		}
	}

	return stats, nil
}
