// Package management implements the C12 thread/user policy gate: thread
// reads and roster, role, visibility and status changes are reachable here
// only after types.ThreadMeta.HasPermission passes, per spec.md §4.9's
// permission predicate and the scenario in spec.md §8.4. CreateThread,
// QuitController (which always acts on the caller's own seat) and the
// user-account methods do not consult HasPermission.
package management

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/state"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// Service gates thread and user lifecycle operations behind the
// caller-supplied principal's permission level, aggregating the state
// layer the way hector's ComponentManager aggregates its registries.
type Service struct {
	Threads *state.ThreadStore
	Users   *state.UserStore

	logger hclog.Logger
}

func New(threads *state.ThreadStore, users *state.UserStore) *Service {
	return &Service{
		Threads: threads,
		Users:   users,
		logger:  hclog.New(&hclog.LoggerOptions{Name: "management", Level: hclog.Info}),
	}
}

// CreateThread creates a new thread, its creator becoming controller,
// manager, and sole initial participant.
func (s *Service) CreateThread(ctx context.Context, id types.Xid, creator types.Principal, maxParticipants int, nowMs int64) (*types.ThreadMeta, error) {
	return s.Threads.Create(ctx, id, creator, maxParticipants, nowMs)
}

// GetThread loads a thread's metadata, enforcing Read permission.
func (s *Service) GetThread(ctx context.Context, caller types.Principal, id types.Xid) (*types.ThreadMeta, error) {
	meta, err := s.Threads.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !meta.HasPermission(caller, types.PermRead) {
		s.logger.Warn("read denied", "thread", id.String(), "caller", caller.String())
		return nil, errs.Authz("management.Service.GetThread", "caller lacks read permission on this thread", nil)
	}
	return meta, nil
}

// AddParticipant enforces Manage permission before adding principal to
// meta's roster.
func (s *Service) AddParticipant(ctx context.Context, caller types.Principal, meta *types.ThreadMeta, principal types.Principal, role string) error {
	if !meta.HasPermission(caller, types.PermManage) {
		return errs.Authz("management.Service.AddParticipant", "caller lacks manage permission on this thread", nil)
	}
	return s.Threads.AddParticipant(ctx, meta, principal, role, nil)
}

// RemoveParticipant enforces Manage permission before removing principal
// from meta's roster (state.ThreadStore itself still refuses to remove a
// controller or manager directly).
func (s *Service) RemoveParticipant(ctx context.Context, caller types.Principal, meta *types.ThreadMeta, principal types.Principal) error {
	if !meta.HasPermission(caller, types.PermManage) {
		return errs.Authz("management.Service.RemoveParticipant", "caller lacks manage permission on this thread", nil)
	}
	return s.Threads.RemoveParticipant(ctx, meta, principal)
}

// QuitController enforces that the caller is quitting their own
// controller seat, not someone else's.
func (s *Service) QuitController(ctx context.Context, caller types.Principal, meta *types.ThreadMeta) error {
	return s.Threads.QuitController(ctx, meta, caller)
}

// AddController enforces Control permission before promoting principal to
// controller.
func (s *Service) AddController(ctx context.Context, caller types.Principal, meta *types.ThreadMeta, principal types.Principal) error {
	if !meta.HasPermission(caller, types.PermControl) {
		return errs.Authz("management.Service.AddController", "caller lacks control permission on this thread", nil)
	}
	return s.Threads.AddController(ctx, meta, principal)
}

// RemoveController enforces Control permission before demoting principal
// from controller.
func (s *Service) RemoveController(ctx context.Context, caller types.Principal, meta *types.ThreadMeta, principal types.Principal) error {
	if !meta.HasPermission(caller, types.PermControl) {
		return errs.Authz("management.Service.RemoveController", "caller lacks control permission on this thread", nil)
	}
	return s.Threads.RemoveController(ctx, meta, principal)
}

// AddManager enforces Control permission before promoting principal to
// manager.
func (s *Service) AddManager(ctx context.Context, caller types.Principal, meta *types.ThreadMeta, principal types.Principal) error {
	if !meta.HasPermission(caller, types.PermControl) {
		return errs.Authz("management.Service.AddManager", "caller lacks control permission on this thread", nil)
	}
	return s.Threads.AddManager(ctx, meta, principal)
}

// RemoveManager enforces Control permission before demoting principal from
// manager.
func (s *Service) RemoveManager(ctx context.Context, caller types.Principal, meta *types.ThreadMeta, principal types.Principal) error {
	if !meta.HasPermission(caller, types.PermControl) {
		return errs.Authz("management.Service.RemoveManager", "caller lacks control permission on this thread", nil)
	}
	return s.Threads.RemoveManager(ctx, meta, principal)
}

// SetVisibility enforces Control permission before changing meta's
// visibility and persisting it.
func (s *Service) SetVisibility(ctx context.Context, caller types.Principal, meta *types.ThreadMeta, visibility types.Visibility) error {
	if !meta.HasPermission(caller, types.PermControl) {
		return errs.Authz("management.Service.SetVisibility", "caller lacks control permission on this thread", nil)
	}
	meta.Visibility = visibility
	return s.Threads.Save(ctx, meta)
}

// SetStatus enforces Control permission before changing meta's lifecycle
// status (e.g. archiving or closing a thread).
func (s *Service) SetStatus(ctx context.Context, caller types.Principal, meta *types.ThreadMeta, status types.ThreadStatus) error {
	if !meta.HasPermission(caller, types.PermControl) {
		return errs.Authz("management.Service.SetStatus", "caller lacks control permission on this thread", nil)
	}
	meta.Status = status
	return s.Threads.Save(ctx, meta)
}

// GetOrCreateUser loads or lazily creates a user's account record; every
// authenticated caller may see and create their own record.
func (s *Service) GetOrCreateUser(ctx context.Context, caller types.Principal) (*types.UserState, error) {
	return s.Users.GetOrCreate(ctx, caller.String())
}

// SuspendUser and ActivateUser are manager-gated account actions: callerIsManager
// is resolved by the caller (typically against an engine-level admin roster,
// out of scope for thread-level permissions) since a user account has no
// per-object controller/manager roster of its own to check against.
func (s *Service) SuspendUser(ctx context.Context, callerIsManager bool, user string) error {
	if !callerIsManager {
		return errs.Authz("management.Service.SuspendUser", "caller is not a manager", nil)
	}
	u, err := s.Users.GetOrCreate(ctx, user)
	if err != nil {
		return err
	}
	u.Status = types.UserSuspended
	return s.Users.Save(ctx, u)
}

// CheckUserCanAct enforces spec.md §3's access predicate on the bearer-
// resolved user riding on an agent_run/tool_call, loading (and lazily
// creating) their account record. Banned, suspended, and credit-exhausted
// users are rejected here before the request ever reaches an agent or tool.
func (s *Service) CheckUserCanAct(ctx context.Context, user string, nowMs int64) error {
	u, err := s.Users.GetOrCreate(ctx, user)
	if err != nil {
		return err
	}
	if !u.CanAct(nowMs) {
		s.logger.Warn("user denied", "user", user, "status", u.Status)
		return errs.Authz("management.Service.CheckUserCanAct", "user account is not active", nil)
	}
	return nil
}

func (s *Service) ActivateUser(ctx context.Context, callerIsManager bool, user string) error {
	if !callerIsManager {
		return errs.Authz("management.Service.ActivateUser", "caller is not a manager", nil)
	}
	u, err := s.Users.GetOrCreate(ctx, user)
	if err != nil {
		return err
	}
	u.Status = types.UserActive
	return s.Users.Save(ctx, u)
}
