package state

import (
	"context"

	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/store"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// UserStore persists UserState records with the same version-checked
// discipline as ThreadStore.
type UserStore struct {
	backend store.Store
	codec   Codec
}

func NewUserStore(backend store.Store) *UserStore {
	return &UserStore{backend: backend, codec: CBORCodec{}}
}

// Get loads a user's state, returning errs.Resource if none has ever been
// created (a UserState is created lazily on first credit topup or
// subscription update, per spec.md §3).
func (s *UserStore) Get(ctx context.Context, user string) (*types.UserState, error) {
	data, m, err := s.backend.Get(ctx, Namespace, userPath(user))
	if err != nil {
		return nil, err
	}
	var u types.UserState
	if err := s.codec.Unmarshal(data, &u); err != nil {
		return nil, errs.Internal("state.UserStore.Get", "decoding user record", err)
	}
	u.Version = m.Version
	return &u, nil
}

// GetOrCreate loads a user's state, lazily creating an active zero-balance
// record the first time it is observed.
func (s *UserStore) GetOrCreate(ctx context.Context, user string) (*types.UserState, error) {
	u, err := s.Get(ctx, user)
	if err == nil {
		return u, nil
	}
	u = types.NewUserState(user)
	if err := s.put(ctx, u, store.Create()); err != nil {
		return nil, err
	}
	return u, nil
}

// Save writes u back with the optimistic-concurrency version it was loaded
// with.
func (s *UserStore) Save(ctx context.Context, u *types.UserState) error {
	return s.put(ctx, u, store.Update(u.Version))
}

func (s *UserStore) put(ctx context.Context, u *types.UserState, mode store.PutMode) error {
	data, err := s.codec.Marshal(u)
	if err != nil {
		return errs.Internal("state.UserStore.put", "encoding user record", err)
	}
	res, err := s.backend.Put(ctx, Namespace, userPath(u.User), mode, data)
	if err != nil {
		return errs.Conflict("state.UserStore.put", "user version conflict, reload and retry", err)
	}
	u.Version = res.Version
	return nil
}

// Delete removes a user's state, an explicit manager-only operation per
// spec.md §3.
func (s *UserStore) Delete(ctx context.Context, user string) error {
	return s.backend.Delete(ctx, Namespace, userPath(user))
}
