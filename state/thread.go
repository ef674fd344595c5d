// Package state implements the C9 thread and user persistence layer atop
// the object store façade: key naming, version-checked writes, the
// permission predicate already on types.ThreadMeta, and the per-owner
// thread index (spec.md §4.9).
package state

import (
	"context"

	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/store"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// Namespace is the system-scoped store namespace every state record lives
// under, per spec.md's reserved "_" path.
const Namespace = types.Path(types.SystemPath)

func threadPath(id types.Xid) types.Path {
	return types.Path("TH_" + id.String() + ".meta.cbor")
}

// userPath keys a user record by its principal's textual form, which is
// exactly what types.UserState.User holds.
func userPath(user string) types.Path {
	return types.Path("US_" + user + ".cbor")
}

func myThreadsPath(p types.Principal) types.Path {
	return types.Path("MYTH_" + p.String() + ".cbor")
}

// ThreadStore persists ThreadMeta records with optimistic concurrency and
// maintains each participant's per-owner thread index.
type ThreadStore struct {
	backend store.Store
	codec   Codec
}

func NewThreadStore(backend store.Store) *ThreadStore {
	return &ThreadStore{backend: backend, codec: CBORCodec{}}
}

// Get loads a thread's metadata.
func (s *ThreadStore) Get(ctx context.Context, id types.Xid) (*types.ThreadMeta, error) {
	data, m, err := s.backend.Get(ctx, Namespace, threadPath(id))
	if err != nil {
		return nil, err
	}
	var meta types.ThreadMeta
	if err := s.codec.Unmarshal(data, &meta); err != nil {
		return nil, errs.Internal("state.ThreadStore.Get", "decoding thread record", err)
	}
	meta.Version = m.Version
	return &meta, nil
}

// Create persists a brand-new thread, seeding the creator's thread index.
func (s *ThreadStore) Create(ctx context.Context, id types.Xid, creator types.Principal, maxParticipants int, nowMs int64) (*types.ThreadMeta, error) {
	meta := types.NewThreadMeta(id, creator, maxParticipants, nowMs)
	if err := s.put(ctx, meta, store.Create()); err != nil {
		return nil, err
	}
	if err := s.addToIndex(ctx, creator, id, nil); err != nil {
		return nil, err
	}
	return meta, nil
}

// Save writes meta back with the optimistic-concurrency version it was
// loaded with; a version mismatch surfaces as errs.Conflict for the caller
// to retry against a freshly-reloaded record.
func (s *ThreadStore) Save(ctx context.Context, meta *types.ThreadMeta) error {
	return s.put(ctx, meta, store.Update(meta.Version))
}

func (s *ThreadStore) put(ctx context.Context, meta *types.ThreadMeta, mode store.PutMode) error {
	data, err := s.codec.Marshal(meta)
	if err != nil {
		return errs.Internal("state.ThreadStore.put", "encoding thread record", err)
	}
	res, err := s.backend.Put(ctx, Namespace, threadPath(meta.ID), mode, data)
	if err != nil {
		return errs.Conflict("state.ThreadStore.put", "thread version conflict, reload and retry", err)
	}
	meta.Version = res.Version
	return nil
}

// MyThreads is the per-owner index: thread id -> hosting engine principal
// (nil/zero entries mean "hosted locally").
type MyThreads map[string]types.Principal

func (s *ThreadStore) myThreads(ctx context.Context, owner types.Principal) (MyThreads, error) {
	data, _, err := s.backend.Get(ctx, Namespace, myThreadsPath(owner))
	if err != nil {
		return MyThreads{}, nil
	}
	var idx MyThreads
	if err := s.codec.Unmarshal(data, &idx); err != nil {
		return nil, errs.Internal("state.ThreadStore.myThreads", "decoding thread index", err)
	}
	return idx, nil
}

// ListMyThreads returns the ids of every thread owner participates in.
func (s *ThreadStore) ListMyThreads(ctx context.Context, owner types.Principal) (MyThreads, error) {
	return s.myThreads(ctx, owner)
}

func (s *ThreadStore) addToIndex(ctx context.Context, owner types.Principal, id types.Xid, host types.Principal) error {
	idx, err := s.myThreads(ctx, owner)
	if err != nil {
		return err
	}
	if idx == nil {
		idx = MyThreads{}
	}
	idx[id.String()] = host
	data, err := s.codec.Marshal(idx)
	if err != nil {
		return errs.Internal("state.ThreadStore.addToIndex", "encoding thread index", err)
	}
	if _, err := s.backend.Put(ctx, Namespace, myThreadsPath(owner), store.Overwrite(), data); err != nil {
		return errs.Internal("state.ThreadStore.addToIndex", "writing thread index", err)
	}
	return nil
}

// AddParticipant adds principal to the thread's roster, rejecting it once
// MaxParticipants is reached, then records the join in the participant's
// own thread index.
func (s *ThreadStore) AddParticipant(ctx context.Context, meta *types.ThreadMeta, principal types.Principal, role string, host types.Principal) error {
	if meta.IsParticipant(principal) {
		return nil
	}
	if meta.MaxParticipants > 0 && len(meta.Participants) >= meta.MaxParticipants {
		return errs.Validation("state.ThreadStore.AddParticipant", "thread has reached max_participants", nil)
	}
	meta.Participants[principal.String()] = role
	if err := s.Save(ctx, meta); err != nil {
		return err
	}
	return s.addToIndex(ctx, principal, meta.ID, host)
}

// RemoveParticipant removes principal from the thread's roster. Removing a
// controller or manager is rejected outright; the caller must demote first.
func (s *ThreadStore) RemoveParticipant(ctx context.Context, meta *types.ThreadMeta, principal types.Principal) error {
	if meta.IsController(principal) || meta.IsManager(principal) {
		return errs.Validation("state.ThreadStore.RemoveParticipant", "cannot remove a controller or manager directly; demote first", nil)
	}
	delete(meta.Participants, principal.String())
	return s.Save(ctx, meta)
}

// AddController promotes principal to controller, per spec.md §3's
// "controllers... are always subsets of participants" and the 5-seat cap.
func (s *ThreadStore) AddController(ctx context.Context, meta *types.ThreadMeta, principal types.Principal) error {
	if !meta.IsParticipant(principal) {
		return errs.Validation("state.ThreadStore.AddController", "principal must be a participant before becoming a controller", nil)
	}
	if meta.IsController(principal) {
		return nil
	}
	if len(meta.Controllers) >= types.MaxControllers {
		return errs.Validation("state.ThreadStore.AddController", "thread has reached max_controllers", nil)
	}
	meta.Controllers[principal.String()] = struct{}{}
	return s.Save(ctx, meta)
}

// RemoveController demotes principal from controller. Removing the last
// remaining controller is rejected outright, keeping controllers non-empty
// per spec.md §3.
func (s *ThreadStore) RemoveController(ctx context.Context, meta *types.ThreadMeta, principal types.Principal) error {
	if !meta.IsController(principal) {
		return errs.Validation("state.ThreadStore.RemoveController", "principal is not a controller", nil)
	}
	if len(meta.Controllers) <= 1 {
		return errs.Validation("state.ThreadStore.RemoveController", "cannot remove the last controller", nil)
	}
	delete(meta.Controllers, principal.String())
	return s.Save(ctx, meta)
}

// AddManager promotes principal to manager, per spec.md §3's "managers...
// are always subsets of participants" and the 5-seat cap.
func (s *ThreadStore) AddManager(ctx context.Context, meta *types.ThreadMeta, principal types.Principal) error {
	if !meta.IsParticipant(principal) {
		return errs.Validation("state.ThreadStore.AddManager", "principal must be a participant before becoming a manager", nil)
	}
	if meta.IsManager(principal) {
		return nil
	}
	if len(meta.Managers) >= types.MaxManagers {
		return errs.Validation("state.ThreadStore.AddManager", "thread has reached max_managers", nil)
	}
	meta.Managers[principal.String()] = struct{}{}
	return s.Save(ctx, meta)
}

// RemoveManager demotes principal from manager. Removing the last remaining
// manager is rejected outright, keeping managers non-empty per spec.md §3.
func (s *ThreadStore) RemoveManager(ctx context.Context, meta *types.ThreadMeta, principal types.Principal) error {
	if !meta.IsManager(principal) {
		return errs.Validation("state.ThreadStore.RemoveManager", "principal is not a manager", nil)
	}
	if len(meta.Managers) <= 1 {
		return errs.Validation("state.ThreadStore.RemoveManager", "cannot remove the last manager", nil)
	}
	delete(meta.Managers, principal.String())
	return s.Save(ctx, meta)
}

// QuitController handles a controller leaving their role: quitting the last
// remaining controller is rejected outright; quitting any other controller
// demotes them (they remain a participant/manager unless also removed).
func (s *ThreadStore) QuitController(ctx context.Context, meta *types.ThreadMeta, principal types.Principal) error {
	return s.RemoveController(ctx, meta, principal)
}
