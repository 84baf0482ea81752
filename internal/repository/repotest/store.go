// Package repotest provides an in-memory repository.Store for tests.
package repotest

import (
	"asset-management-api/internal/model"
	"asset-management-api/internal/repository"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type data struct {
	assets      map[uuid.UUID]model.Asset
	allocations map[uuid.UUID]model.Allocation
	users       map[uuid.UUID]model.User
	subs        map[string]model.PushSubscription
	purchases   map[uuid.UUID]model.Purchase
	seq         map[uuid.UUID]int
	next        int
}

func newData() *data {
	return &data{
		assets:      make(map[uuid.UUID]model.Asset),
		allocations: make(map[uuid.UUID]model.Allocation),
		users:       make(map[uuid.UUID]model.User),
		subs:        make(map[string]model.PushSubscription),
		purchases:   make(map[uuid.UUID]model.Purchase),
		seq:         make(map[uuid.UUID]int),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.assets {
		c.assets[k] = v
	}
	for k, v := range d.allocations {
		c.allocations[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.subs {
		c.subs[k] = v
	}
	for k, v := range d.purchases {
		c.purchases[k] = v
	}
	for k, v := range d.seq {
		c.seq[k] = v
	}
	c.next = d.next
	return c
}

type shared struct {
	mu       sync.Mutex
	data     *data
	failures map[string]error
	txCount  int
}

// Store is an in-memory repository.Store. Transactions serialise on a single
// lock and roll back by restoring a snapshot.
type Store struct {
	s    *shared
	inTx bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{s: &shared{data: newData(), failures: make(map[string]error)}}
}

// FailOn makes the named repository method return err until cleared with a
// nil err.
func (st *Store) FailOn(method string, err error) {
	st.lock()
	defer st.unlock()
	if err == nil {
		delete(st.s.failures, method)
		return
	}
	st.s.failures[method] = err
}

// Transactions reports how many top-level transactions have committed or
// rolled back.
func (st *Store) Transactions() int {
	st.lock()
	defer st.unlock()
	return st.s.txCount
}

// SeedUser stores u together with its push subscriptions.
func (st *Store) SeedUser(u model.User) {
	st.lock()
	defer st.unlock()
	for _, sub := range u.PushSubscriptions {
		sub.UserID = u.ID
		st.s.data.subs[sub.Endpoint] = sub
	}
	u.PushSubscriptions = nil
	st.s.data.users[u.ID] = u
}

// SeedAsset stores a as is, bypassing creation defaults.
func (st *Store) SeedAsset(a model.Asset) {
	st.lock()
	defer st.unlock()
	st.s.data.assets[a.ID] = a
}

// SeedAllocation stores a as is, in any status.
func (st *Store) SeedAllocation(a model.Allocation) {
	st.lock()
	defer st.unlock()
	st.s.data.allocations[a.ID] = a
	st.s.data.order(a.ID)
}

func (d *data) order(id uuid.UUID) {
	if _, ok := d.seq[id]; !ok {
		d.next++
		d.seq[id] = d.next
	}
}

func (st *Store) lock() {
	if !st.inTx {
		st.s.mu.Lock()
	}
}

func (st *Store) unlock() {
	if !st.inTx {
		st.s.mu.Unlock()
	}
}

func (st *Store) fail(method string) error {
	return st.s.failures[method]
}

func (st *Store) Assets() repository.AssetRepository           { return &assets{st} }
func (st *Store) Allocations() repository.AllocationRepository { return &allocations{st} }
func (st *Store) Users() repository.UserRepository             { return &users{st} }
func (st *Store) Purchases() repository.PurchaseRepository     { return &purchases{st} }

func (st *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if st.inTx {
		return fn(st)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	if err := st.fail("WithTx"); err != nil {
		return err
	}

	snapshot := st.s.data.clone()
	st.s.txCount++
	if err := fn(&Store{s: st.s, inTx: true}); err != nil {
		st.s.data = snapshot
		return err
	}
	return nil
}

func (st *Store) Savepoint(ctx context.Context, name string, fn func(repository.Store) error) error {
	if !st.inTx {
		return fn(st)
	}
	snapshot := st.s.data.clone()
	if err := fn(st); err != nil {
		st.s.data = snapshot
		return err
	}
	return nil
}

type assets struct{ st *Store }

func (r *assets) CreateAsset(ctx context.Context, asset model.Asset) error {
	r.st.lock()
	defer r.st.unlock()
	if err := r.st.fail("CreateAsset"); err != nil {
		return err
	}
	d := r.st.s.data
	for _, a := range d.assets {
		if a.SerialNumber == asset.SerialNumber {
			return repository.ErrDuplicateSerial
		}
	}
	now := time.Now().UTC()
	asset.Available = true
	asset.AllocationID = uuid.NullUUID{}
	asset.CreatedAt, asset.UpdatedAt = now, now
	d.assets[asset.ID] = asset
	return nil
}

func (r *assets) GetAssetByID(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	r.st.lock()
	defer r.st.unlock()
	if err := r.st.fail("GetAssetByID"); err != nil {
		return nil, err
	}
	a, ok := r.st.s.data.assets[id]
	if !ok {
		return nil, repository.ErrAssetNotFound
	}
	return &a, nil
}

func (r *assets) LockAssetByID(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	return r.GetAssetByID(ctx, id)
}

func (r *assets) GetAllAssetsPaginated(ctx context.Context, params repository.PaginationParams) (*repository.Page[model.Asset], error) {
	r.st.lock()
	defer r.st.unlock()
	if err := r.st.fail("GetAllAssetsPaginated"); err != nil {
		return nil, err
	}
	items := make([]model.Asset, 0, len(r.st.s.data.assets))
	for _, a := range r.st.s.data.assets {
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].SerialNumber < items[j].SerialNumber
	})
	return paginate(items, params), nil
}

func (r *assets) UpdateAssetDetails(ctx context.Context, id uuid.UUID, asset model.Asset) error {
	r.st.lock()
	defer r.st.unlock()
	d := r.st.s.data
	a, ok := d.assets[id]
	if !ok {
		return repository.ErrAssetNotFound
	}
	for otherID, other := range d.assets {
		if otherID != id && other.SerialNumber == asset.SerialNumber {
			return repository.ErrDuplicateSerial
		}
	}
	a.Name, a.Model, a.SerialNumber = asset.Name, asset.Model, asset.SerialNumber
	a.Description, a.State, a.PurchaserID = asset.Description, asset.State, asset.PurchaserID
	a.UpdatedAt = time.Now().UTC()
	d.assets[id] = a
	return nil
}

func (r *assets) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	r.st.lock()
	defer r.st.unlock()
	if _, ok := r.st.s.data.assets[id]; !ok {
		return repository.ErrAssetNotFound
	}
	delete(r.st.s.data.assets, id)
	return nil
}

func (r *assets) SetAllocationRef(ctx context.Context, assetID, allocationID uuid.UUID) error {
	return r.mutate("SetAllocationRef", assetID, func(a *model.Asset) {
		a.AllocationID = uuid.NullUUID{UUID: allocationID, Valid: true}
	})
}

func (r *assets) MarkAllocated(ctx context.Context, assetID, allocationID uuid.UUID, newOwner uuid.NullUUID) error {
	return r.mutate("MarkAllocated", assetID, func(a *model.Asset) {
		a.Available = false
		a.AllocationID = uuid.NullUUID{UUID: allocationID, Valid: true}
		if newOwner.Valid {
			a.OwnerID = newOwner
		}
	})
}

func (r *assets) MarkAvailable(ctx context.Context, assetID, releasedAllocationID uuid.UUID) (bool, error) {
	r.st.lock()
	defer r.st.unlock()
	if err := r.st.fail("MarkAvailable"); err != nil {
		return false, err
	}
	d := r.st.s.data
	a, ok := d.assets[assetID]
	if !ok {
		return false, repository.ErrAssetNotFound
	}
	for _, al := range d.allocations {
		if al.AssetID == assetID && al.Status == model.AllocationApproved && al.ID != releasedAllocationID {
			return false, nil
		}
	}
	a.Available = true
	a.UpdatedAt = time.Now().UTC()
	d.assets[assetID] = a
	return true, nil
}

func (r *assets) mutate(method string, id uuid.UUID, fn func(*model.Asset)) error {
	r.st.lock()
	defer r.st.unlock()
	if err := r.st.fail(method); err != nil {
		return err
	}
	a, ok := r.st.s.data.assets[id]
	if !ok {
		return repository.ErrAssetNotFound
	}
	fn(&a)
	a.UpdatedAt = time.Now().UTC()
	r.st.s.data.assets[id] = a
	return nil
}

type allocations struct{ st *Store }

func (r *allocations) CreateAllocation(ctx context.Context, allocation model.Allocation) error {
	r.st.lock()
	defer r.st.unlock()
	if err := r.st.fail("CreateAllocation"); err != nil {
		return err
	}
	now := time.Now().UTC()
	allocation.CreatedAt, allocation.UpdatedAt = now, now
	r.st.s.data.allocations[allocation.ID] = allocation
	r.st.s.data.order(allocation.ID)
	return nil
}

func (r *allocations) GetAllocationByID(ctx context.Context, id uuid.UUID) (*model.Allocation, error) {
	r.st.lock()
	defer r.st.unlock()
	if err := r.st.fail("GetAllocationByID"); err != nil {
		return nil, err
	}
	a, ok := r.st.s.data.allocations[id]
	if !ok {
		return nil, repository.ErrAllocationNotFound
	}
	return &a, nil
}

func (r *allocations) GetAllAllocationsPaginated(ctx context.Context, params repository.PaginationParams) (*repository.Page[model.Allocation], error) {
	return r.list(params, func(model.Allocation) bool { return true }), nil
}

func (r *allocations) GetAllocationsByUserPaginated(ctx context.Context, userID uuid.UUID, params repository.PaginationParams) (*repository.Page[model.Allocation], error) {
	return r.list(params, func(a model.Allocation) bool {
		return a.AllocatedBy == userID || (a.AllocatedTo.Valid && a.AllocatedTo.UUID == userID)
	}), nil
}

func (r *allocations) GetAllocationsByAssetPaginated(ctx context.Context, assetID uuid.UUID, params repository.PaginationParams) (*repository.Page[model.Allocation], error) {
	return r.list(params, func(a model.Allocation) bool { return a.AssetID == assetID }), nil
}

func (r *allocations) list(params repository.PaginationParams, keep func(model.Allocation) bool) *repository.Page[model.Allocation] {
	r.st.lock()
	defer r.st.unlock()
	d := r.st.s.data
	items := []model.Allocation{}
	for _, a := range d.allocations {
		if keep(a) {
			items = append(items, a)
		}
	}
	// newest first
	sort.Slice(items, func(i, j int) bool { return d.seq[items[i].ID] > d.seq[items[j].ID] })
	return paginate(items, params)
}

func (r *allocations) GetExpiringAllocations(ctx context.Context) ([]model.Allocation, error) {
	r.st.lock()
	defer r.st.unlock()
	if err := r.st.fail("GetExpiringAllocations"); err != nil {
		return nil, err
	}
	d := r.st.s.data
	items := []model.Allocation{}
	for _, a := range d.allocations {
		if a.Status == model.AllocationApproved && strings.TrimSpace(a.EndTime) != "" {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool { return d.seq[items[i].ID] < d.seq[items[j].ID] })
	return items, nil
}

func (r *allocations) HasOtherApprovedAllocation(ctx context.Context, assetID, excludeID uuid.UUID) (bool, error) {
	r.st.lock()
	defer r.st.unlock()
	for _, a := range r.st.s.data.allocations {
		if a.AssetID == assetID && a.Status == model.AllocationApproved && a.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *allocations) TransitionStatus(ctx context.Context, t repository.StatusTransition) (*model.Allocation, error) {
	r.st.lock()
	defer r.st.unlock()
	if err := r.st.fail("TransitionStatus"); err != nil {
		return nil, err
	}
	a, ok := r.st.s.data.allocations[t.ID]
	if !ok {
		return nil, repository.ErrAllocationNotFound
	}
	if a.Status != t.From {
		return nil, repository.ErrStatusConflict
	}
	a.Status = t.To
	a.StatusChangedAt = t.At
	a.UpdatedAt = t.At
	if t.ApprovedBy.Valid {
		a.ApprovedBy = t.ApprovedBy
	}
	if t.RejectionReason != "" {
		a.RejectionReason = t.RejectionReason
	}
	a.Version++
	r.st.s.data.allocations[t.ID] = a
	return &a, nil
}

func (r *allocations) UpdateAllocationDetails(ctx context.Context, id uuid.UUID, expectedVersion int, u repository.AllocationUpdate) (*model.Allocation, error) {
	r.st.lock()
	defer r.st.unlock()
	a, ok := r.st.s.data.allocations[id]
	if !ok {
		return nil, repository.ErrAllocationNotFound
	}
	if a.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}
	a.Type, a.Purpose, a.StartTime, a.EndTime = u.Type, u.Purpose, u.StartTime, u.EndTime
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	r.st.s.data.allocations[id] = a
	return &a, nil
}

type users struct{ st *Store }

func (r *users) CreateUser(ctx context.Context, user model.User) error {
	r.st.lock()
	defer r.st.unlock()
	for _, u := range r.st.s.data.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	user.PushSubscriptions = nil
	r.st.s.data.users[user.ID] = user
	return nil
}

func (r *users) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	found, err := r.GetUsersByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, repository.ErrUserNotFound
	}
	return &found[0], nil
}

func (r *users) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	r.st.lock()
	defer r.st.unlock()
	if err := r.st.fail("GetUsersByIDs"); err != nil {
		return nil, err
	}
	d := r.st.s.data
	out := []model.User{}
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		u, ok := d.users[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		u.PushSubscriptions = nil
		for _, sub := range d.subs {
			if sub.UserID == id {
				u.PushSubscriptions = append(u.PushSubscriptions, sub)
			}
		}
		sort.Slice(u.PushSubscriptions, func(i, j int) bool {
			return u.PushSubscriptions[i].Endpoint < u.PushSubscriptions[j].Endpoint
		})
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *users) GetUserIDsByRole(ctx context.Context, role model.Role) ([]uuid.UUID, error) {
	r.st.lock()
	defer r.st.unlock()
	if err := r.st.fail("GetUserIDsByRole"); err != nil {
		return nil, err
	}
	ids := []uuid.UUID{}
	for id, u := range r.st.s.data.users {
		if u.Role == role {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (r *users) SavePushSubscription(ctx context.Context, sub model.PushSubscription) error {
	r.st.lock()
	defer r.st.unlock()
	if existing, ok := r.st.s.data.subs[sub.Endpoint]; ok {
		if existing.UserID != sub.UserID {
			return repository.ErrSubscriptionTaken
		}
		sub.CreatedAt = existing.CreatedAt
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	r.st.s.data.subs[sub.Endpoint] = sub
	return nil
}

func (r *users) DeletePushSubscription(ctx context.Context, userID uuid.UUID, endpoint string) error {
	r.st.lock()
	defer r.st.unlock()
	sub, ok := r.st.s.data.subs[endpoint]
	if !ok || sub.UserID != userID {
		return repository.ErrSubscriptionNotFound
	}
	delete(r.st.s.data.subs, endpoint)
	return nil
}

func (r *users) DeletePushSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	r.st.lock()
	defer r.st.unlock()
	delete(r.st.s.data.subs, endpoint)
	return nil
}

type purchases struct{ st *Store }

func (r *purchases) CreatePurchase(ctx context.Context, purchase model.Purchase) error {
	r.st.lock()
	defer r.st.unlock()
	if err := r.st.fail("CreatePurchase"); err != nil {
		return err
	}
	now := time.Now().UTC()
	purchase.CreatedAt, purchase.UpdatedAt = now, now
	purchase.Approved = false
	purchase.ApprovedBy = uuid.NullUUID{}
	r.st.s.data.purchases[purchase.ID] = purchase
	r.st.s.data.order(purchase.ID)
	return nil
}

func (r *purchases) GetPurchaseByID(ctx context.Context, id uuid.UUID) (*model.Purchase, error) {
	r.st.lock()
	defer r.st.unlock()
	p, ok := r.st.s.data.purchases[id]
	if !ok {
		return nil, repository.ErrPurchaseNotFound
	}
	return &p, nil
}

func (r *purchases) GetAllPurchasesPaginated(ctx context.Context, params repository.PaginationParams) (*repository.Page[model.Purchase], error) {
	r.st.lock()
	defer r.st.unlock()
	d := r.st.s.data
	items := make([]model.Purchase, 0, len(d.purchases))
	for _, p := range d.purchases {
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return d.seq[items[i].ID] > d.seq[items[j].ID] })
	return paginate(items, params), nil
}

func (r *purchases) ApprovePurchase(ctx context.Context, id, approver uuid.UUID) (*model.Purchase, error) {
	r.st.lock()
	defer r.st.unlock()
	p, ok := r.st.s.data.purchases[id]
	if !ok {
		return nil, repository.ErrPurchaseNotFound
	}
	if p.Approved {
		return nil, repository.ErrPurchaseAlreadyApproved
	}
	p.Approved = true
	p.ApprovedBy = uuid.NullUUID{UUID: approver, Valid: true}
	p.UpdatedAt = time.Now().UTC()
	r.st.s.data.purchases[id] = p
	return &p, nil
}

func paginate[T any](items []T, params repository.PaginationParams) *repository.Page[T] {
	total := len(items)
	start := params.Offset
	if start > total {
		start = total
	}
	end := total
	if params.Limit > 0 && start+params.Limit < total {
		end = start + params.Limit
	}
	return &repository.Page[T]{Items: items[start:end], TotalCount: total}
}

var _ repository.Store = (*Store)(nil)
