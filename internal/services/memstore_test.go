package services

import (
	"context"
	"sort"
	"time"

	"github.com/GoldenEggs-Workshop/spend-what-server/types"
)

// memStore is an in-memory Store used by the service tests. It mirrors
// the Postgres store's error semantics (NotFound sentinels, duplicate
// usernames) but runs callbacks directly instead of opening
// transactions.
type memStore struct {
	users    map[int64]types.User
	sessions map[int64]types.Session
	bills    map[int64]types.Bill
	members  map[int64]types.Member
	access   map[int64]types.Access
	items    map[int64]types.Item
	shares   map[int64]types.ShareToken

	nextID int64
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]types.User),
		sessions: make(map[int64]types.Session),
		bills:    make(map[int64]types.Bill),
		members:  make(map[int64]types.Member),
		access:   make(map[int64]types.Access),
		items:    make(map[int64]types.Item),
		shares:   make(map[int64]types.ShareToken),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) Users() UserRepository       { return memUsers{m} }
func (m *memStore) Sessions() SessionRepository { return memSessions{m} }
func (m *memStore) Bills() BillRepository       { return memBills{m} }
func (m *memStore) Items() ItemRepository       { return memItems{m} }
func (m *memStore) Shares() ShareRepository     { return memShares{m} }

func (m *memStore) RunInTx(ctx context.Context, fn func(Store) error) error {
	return fn(m)
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	for _, existing := range r.s.users {
		if existing.Username == user.Username {
			return types.User{}, &DuplicateError{Field: "username"}
		}
	}
	user.ID = r.s.id()
	r.s.users[user.ID] = user
	return user, nil
}

func (r memUsers) GetByID(ctx context.Context, id int64) (types.User, error) {
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r memUsers) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range r.s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

type memSessions struct{ s *memStore }

func (r memSessions) Create(ctx context.Context, session types.Session) (types.Session, error) {
	session.ID = r.s.id()
	r.s.sessions[session.ID] = session
	return session, nil
}

func (r memSessions) GetByToken(ctx context.Context, token string) (types.Session, error) {
	for _, session := range r.s.sessions {
		if session.Token == token {
			return session, nil
		}
	}
	return types.Session{}, ErrNotFound
}

func (r memSessions) SetExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	session, ok := r.s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	session.ExpiresAt = expiresAt
	r.s.sessions[id] = session
	return nil
}

func (r memSessions) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.sessions, id)
	return nil
}

func (r memSessions) DeleteByToken(ctx context.Context, token string) error {
	for id, session := range r.s.sessions {
		if session.Token == token {
			delete(r.s.sessions, id)
			return nil
		}
	}
	return ErrNotFound
}

type memBills struct{ s *memStore }

func (r memBills) Create(ctx context.Context, bill types.Bill) (types.Bill, error) {
	bill.ID = r.s.id()
	r.s.bills[bill.ID] = bill
	return bill, nil
}

func (r memBills) Get(ctx context.Context, id int64) (types.Bill, error) {
	bill, ok := r.s.bills[id]
	if !ok {
		return types.Bill{}, ErrNotFound
	}
	return bill, nil
}

func (r memBills) UpdateTitle(ctx context.Context, id int64, title string) error {
	bill, ok := r.s.bills[id]
	if !ok {
		return ErrNotFound
	}
	bill.Title = title
	r.s.bills[id] = bill
	return nil
}

func (r memBills) TouchItemUpdated(ctx context.Context, id int64, at time.Time) error {
	bill, ok := r.s.bills[id]
	if !ok {
		return ErrNotFound
	}
	bill.ItemUpdatedTime = at
	r.s.bills[id] = bill
	return nil
}

func (r memBills) ListForUser(ctx context.Context, userID int64, skip, limit int) ([]types.Bill, error) {
	var bills []types.Bill
	for _, access := range r.s.access {
		if access.UserID != userID {
			continue
		}
		if bill, ok := r.s.bills[access.BillID]; ok {
			bills = append(bills, bill)
		}
	}
	sort.Slice(bills, func(i, j int) bool {
		return bills[i].ItemUpdatedTime.After(bills[j].ItemUpdatedTime)
	})
	return page(bills, skip, limit), nil
}

func (r memBills) DeleteByIDs(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		delete(r.s.bills, id)
	}
	return nil
}

func (r memBills) Members(ctx context.Context, billID int64) ([]types.Member, error) {
	members := []types.Member{}
	for _, member := range r.s.members {
		if member.BillID == billID {
			members = append(members, member)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (r memBills) GetMember(ctx context.Context, memberID int64) (types.Member, error) {
	member, ok := r.s.members[memberID]
	if !ok {
		return types.Member{}, ErrNotFound
	}
	return member, nil
}

func (r memBills) AddMember(ctx context.Context, member types.Member) (types.Member, error) {
	member.ID = r.s.id()
	r.s.members[member.ID] = member
	return member, nil
}

func (r memBills) RenameMember(ctx context.Context, memberID int64, name string) error {
	member, ok := r.s.members[memberID]
	if !ok {
		return ErrNotFound
	}
	member.Name = name
	r.s.members[memberID] = member
	return nil
}

func (r memBills) BindMember(ctx context.Context, memberID int64, userID *int64) error {
	member, ok := r.s.members[memberID]
	if !ok {
		return ErrNotFound
	}
	member.LinkedUserID = userID
	r.s.members[memberID] = member
	return nil
}

func (r memBills) DeleteMember(ctx context.Context, memberID int64) error {
	if _, ok := r.s.members[memberID]; !ok {
		return ErrNotFound
	}
	delete(r.s.members, memberID)
	return nil
}

func (r memBills) DeleteMembersByBills(ctx context.Context, ids []int64) error {
	for id, member := range r.s.members {
		if containsID(ids, member.BillID) {
			delete(r.s.members, id)
		}
	}
	return nil
}

func (r memBills) FindAccess(ctx context.Context, billID, userID int64) (types.Access, error) {
	for _, access := range r.s.access {
		if access.BillID == billID && access.UserID == userID {
			return access, nil
		}
	}
	return types.Access{}, ErrNotFound
}

func (r memBills) InsertAccess(ctx context.Context, access types.Access) (types.Access, error) {
	for _, existing := range r.s.access {
		if existing.BillID == access.BillID && existing.UserID == access.UserID {
			return types.Access{}, &DuplicateError{Field: "access"}
		}
	}
	access.ID = r.s.id()
	r.s.access[access.ID] = access
	return access, nil
}

func (r memBills) ListAccess(ctx context.Context, billID int64) ([]types.AccessEntry, error) {
	entries := []types.AccessEntry{}
	for _, access := range r.s.access {
		if access.BillID != billID {
			continue
		}
		entries = append(entries, types.AccessEntry{
			UserID:   access.UserID,
			Username: r.s.users[access.UserID].Username,
			Role:     access.Role,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })
	return entries, nil
}

func (r memBills) ListAccessByRole(ctx context.Context, billIDs []int64, role types.AccessRole) ([]types.Access, error) {
	var rows []types.Access
	for _, access := range r.s.access {
		if access.Role == role && containsID(billIDs, access.BillID) {
			rows = append(rows, access)
		}
	}
	return rows, nil
}

func (r memBills) DeleteAccessByBills(ctx context.Context, ids []int64) error {
	for id, access := range r.s.access {
		if containsID(ids, access.BillID) {
			delete(r.s.access, id)
		}
	}
	return nil
}

type memItems struct{ s *memStore }

func (r memItems) Insert(ctx context.Context, item types.Item) (types.Item, error) {
	item.ID = r.s.id()
	r.s.items[item.ID] = item
	return item, nil
}

func (r memItems) Get(ctx context.Context, id int64) (types.Item, error) {
	item, ok := r.s.items[id]
	if !ok {
		return types.Item{}, ErrNotFound
	}
	return item, nil
}

func (r memItems) Update(ctx context.Context, item types.Item) error {
	if _, ok := r.s.items[item.ID]; !ok {
		return ErrNotFound
	}
	r.s.items[item.ID] = item
	return nil
}

func (r memItems) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.items, id)
	return nil
}

func (r memItems) ListByBill(ctx context.Context, billID int64, skip, limit int) ([]types.Item, error) {
	var items []types.Item
	for _, item := range r.s.items {
		if item.BillID == billID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].OccurredTime.After(items[j].OccurredTime)
	})
	return page(items, skip, limit), nil
}

func (r memItems) CountByPayer(ctx context.Context, memberID int64) (int, error) {
	count := 0
	for _, item := range r.s.items {
		if item.PaidBy == memberID {
			count++
		}
	}
	return count, nil
}

func (r memItems) DeleteByBills(ctx context.Context, ids []int64) error {
	for id, item := range r.s.items {
		if containsID(ids, item.BillID) {
			delete(r.s.items, id)
		}
	}
	return nil
}

func (r memItems) SetReceiptKey(ctx context.Context, id int64, key *string) error {
	item, ok := r.s.items[id]
	if !ok {
		return ErrNotFound
	}
	item.ReceiptKey = key
	r.s.items[id] = item
	return nil
}

type memShares struct{ s *memStore }

func (r memShares) Insert(ctx context.Context, token types.ShareToken) (types.ShareToken, error) {
	token.ID = r.s.id()
	r.s.shares[token.ID] = token
	return token, nil
}

func (r memShares) GetByToken(ctx context.Context, token string) (types.ShareToken, error) {
	for _, share := range r.s.shares {
		if share.Token == token {
			return share, nil
		}
	}
	return types.ShareToken{}, ErrNotFound
}

func (r memShares) GetByTokenAndBill(ctx context.Context, token string, billID int64) (types.ShareToken, error) {
	for _, share := range r.s.shares {
		if share.Token == token && share.BillID == billID {
			return share, nil
		}
	}
	return types.ShareToken{}, ErrNotFound
}

func (r memShares) List(ctx context.Context, billID int64) ([]types.ShareTokenView, error) {
	views := []types.ShareTokenView{}
	for _, share := range r.s.shares {
		if share.BillID != billID {
			continue
		}
		view := types.ShareTokenView{
			Token:         share.Token,
			Role:          share.Role,
			CreatedBy:     r.s.users[share.CreatedBy].Username,
			CreatedTime:   share.CreatedTime,
			ExpiresAt:     share.ExpiresAt,
			RemainingUses: share.RemainingUses,
		}
		if share.MemberID != nil {
			if member, ok := r.s.members[*share.MemberID]; ok {
				name := member.Name
				view.MemberName = &name
			}
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Token < views[j].Token })
	return views, nil
}

func (r memShares) SetRemainingUses(ctx context.Context, id int64, uses int) error {
	share, ok := r.s.shares[id]
	if !ok {
		return ErrNotFound
	}
	share.RemainingUses = &uses
	r.s.shares[id] = share
	return nil
}

func (r memShares) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.shares[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.shares, id)
	return nil
}

func (r memShares) DeleteByBills(ctx context.Context, ids []int64) error {
	for id, share := range r.s.shares {
		if containsID(ids, share.BillID) {
			delete(r.s.shares, id)
		}
	}
	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func page[T any](rows []T, skip, limit int) []T {
	if skip >= len(rows) {
		return []T{}
	}
	rows = rows[skip:]
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	events []types.BillEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event types.BillEvent) {
	p.events = append(p.events, event)
}
