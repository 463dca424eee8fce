package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
	"github.com/bimakw/token-forwarder/internal/domain/repositories"
)

type MockCall struct {
	Method string
	Args   []interface{}
}

// MockForwardRepository is an in-memory ForwardRepository
type MockForwardRepository struct {
	mu       sync.RWMutex
	forwards []entities.Forward
	nextID   int64

	// Function hooks for custom behavior
	CreateFunc        func(ctx context.Context, forward *entities.Forward) error
	UpdateResultFunc  func(ctx context.Context, id int64, status entities.ForwardStatus, forwardTxHash, errMsg string) error
	GetByIDFunc       func(ctx context.Context, id int64) (*entities.Forward, error)
	GetByFilterFunc   func(ctx context.Context, filter entities.ForwardFilter) ([]entities.Forward, error)
	GetCountFunc      func(ctx context.Context, filter entities.ForwardFilter) (int64, error)
	GetTokenStatsFunc func(ctx context.Context, tokenAddress string, network *string) (*repositories.ForwardStatsResult, error)

	// Call tracking
	Calls []MockCall
}

func NewMockForwardRepository() *MockForwardRepository {
	return &MockForwardRepository{
		forwards: make([]entities.Forward, 0),
		Calls:    make([]MockCall, 0),
	}
}

func (m *MockForwardRepository) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

func (m *MockForwardRepository) Create(ctx context.Context, forward *entities.Forward) error {
	m.record("Create", *forward)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, forward)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	forward.ID = m.nextID
	forward.CreatedAt = time.Now()
	forward.UpdatedAt = forward.CreatedAt
	m.forwards = append(m.forwards, *forward)
	return nil
}

func (m *MockForwardRepository) UpdateResult(ctx context.Context, id int64, status entities.ForwardStatus, forwardTxHash, errMsg string) error {
	m.record("UpdateResult", id, status, forwardTxHash, errMsg)
	if m.UpdateResultFunc != nil {
		return m.UpdateResultFunc(ctx, id, status, forwardTxHash, errMsg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.forwards {
		if m.forwards[i].ID == id {
			m.forwards[i].Status = status
			m.forwards[i].ForwardTxHash = forwardTxHash
			m.forwards[i].Error = errMsg
			m.forwards[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("forward %d not found", id)
}

func (m *MockForwardRepository) GetByID(ctx context.Context, id int64) (*entities.Forward, error) {
	m.record("GetByID", id)
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.forwards {
		if f.ID == id {
			found := f
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MockForwardRepository) GetByFilter(ctx context.Context, filter entities.ForwardFilter) ([]entities.Forward, error) {
	m.record("GetByFilter", filter)
	if m.GetByFilterFunc != nil {
		return m.GetByFilterFunc(ctx, filter)
	}

	result := m.filter(filter)

	start := filter.Offset
	if start > len(result) {
		return []entities.Forward{}, nil
	}
	end := start + filter.Limit
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (m *MockForwardRepository) GetCount(ctx context.Context, filter entities.ForwardFilter) (int64, error) {
	m.record("GetCount", filter)
	if m.GetCountFunc != nil {
		return m.GetCountFunc(ctx, filter)
	}
	return int64(len(m.filter(filter))), nil
}

// GetTokenStats aggregates the stored forwards of a token
func (m *MockForwardRepository) GetTokenStats(ctx context.Context, tokenAddress string, network *string) (*repositories.ForwardStatsResult, error) {
	m.record("GetTokenStats", tokenAddress, network)
	if m.GetTokenStatsFunc != nil {
		return m.GetTokenStatsFunc(ctx, tokenAddress, network)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := &repositories.ForwardStatsResult{TokenDecimals: 18}
	volume := new(big.Int)
	volume24h := new(big.Int)
	dayAgo := time.Now().Add(-24 * time.Hour)

	for _, f := range m.forwards {
		if f.TokenAddress != tokenAddress {
			continue
		}
		if network != nil && f.Network != *network {
			continue
		}
		result.TotalForwards++
		result.TokenDecimals = f.TokenDecimals

		recent := !f.CreatedAt.Before(dayAgo)
		if recent {
			result.Forwards24h++
		}

		switch f.Status {
		case entities.ForwardConfirmed:
			result.Confirmed++
			amount := f.Amount
			if amount == nil {
				amount, _ = new(big.Int).SetString(f.AmountString, 10)
			}
			if amount != nil {
				volume.Add(volume, amount)
				if recent {
					volume24h.Add(volume24h, amount)
				}
			}
		case entities.ForwardFailed:
			result.Failed++
		case entities.ForwardPending:
			result.Pending++
		}

		createdAt := f.CreatedAt
		if result.FirstForwardAt == nil || createdAt.Before(*result.FirstForwardAt) {
			result.FirstForwardAt = &createdAt
		}
		if result.LastForwardAt == nil || createdAt.After(*result.LastForwardAt) {
			result.LastForwardAt = &createdAt
		}
	}

	result.ConfirmedVolume = volume.String()
	result.Volume24h = volume24h.String()
	return result, nil
}

// filter returns matching forwards newest first
func (m *MockForwardRepository) filter(filter entities.ForwardFilter) []entities.Forward {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.Forward, 0)
	for _, f := range m.forwards {
		if filter.Network != nil && f.Network != *filter.Network {
			continue
		}
		if filter.TokenAddress != nil && f.TokenAddress != *filter.TokenAddress {
			continue
		}
		if filter.Status != nil && f.Status != *filter.Status {
			continue
		}
		if filter.Trigger != nil && f.Trigger != *filter.Trigger {
			continue
		}
		result = append(result, f)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result
}

// AddForwards stores forwards as-is
func (m *MockForwardRepository) AddForwards(forwards ...entities.Forward) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range forwards {
		if f.ID > m.nextID {
			m.nextID = f.ID
		}
		m.forwards = append(m.forwards, f)
	}
}

// Forwards returns a copy of the stored forwards in insertion order
func (m *MockForwardRepository) Forwards() []entities.Forward {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entities.Forward, len(m.forwards))
	copy(out, m.forwards)
	return out
}

// MockSubscription is a log subscription driven by the test
type MockSubscription struct {
	errCh chan error
	once  sync.Once
}

func NewMockSubscription() *MockSubscription {
	return &MockSubscription{errCh: make(chan error, 1)}
}

func (s *MockSubscription) Err() <-chan error {
	return s.errCh
}

func (s *MockSubscription) Unsubscribe() {
	s.once.Do(func() { close(s.errCh) })
}

// Fail ends the subscription with err
func (s *MockSubscription) Fail(err error) {
	s.errCh <- err
}

// MockChainClient is a scriptable chain read side
type MockChainClient struct {
	mu     sync.Mutex
	height uint64
	logs   []types.Log
	subCh  chan<- types.Log

	BlockNumberFunc         func(ctx context.Context) (uint64, error)
	FilterLogsFunc          func(ctx context.Context, query geth.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogsFunc func(ctx context.Context, query geth.FilterQuery, ch chan<- types.Log) (geth.Subscription, error)

	Subscription *MockSubscription
	Queries      []geth.FilterQuery
}

func NewMockChainClient(height uint64) *MockChainClient {
	return &MockChainClient{height: height}
}

// SetHeight sets the height BlockNumber reports
func (m *MockChainClient) SetHeight(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height = height
}

// AddLogs makes logs available to FilterLogs
func (m *MockChainClient) AddLogs(logs ...types.Log) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, logs...)
}

func (m *MockChainClient) BlockNumber(ctx context.Context) (uint64, error) {
	if m.BlockNumberFunc != nil {
		return m.BlockNumberFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height, nil
}

// FilterLogs returns stored logs inside the query's block range whose topics match
func (m *MockChainClient) FilterLogs(ctx context.Context, query geth.FilterQuery) ([]types.Log, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()

	if m.FilterLogsFunc != nil {
		return m.FilterLogsFunc(ctx, query)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result []types.Log
	for _, log := range m.logs {
		if query.FromBlock != nil && log.BlockNumber < query.FromBlock.Uint64() {
			continue
		}
		if query.ToBlock != nil && log.BlockNumber > query.ToBlock.Uint64() {
			continue
		}
		if !topicsMatch(query.Topics, log.Topics) {
			continue
		}
		result = append(result, log)
	}
	return result, nil
}

func topicsMatch(filter [][]common.Hash, topics []common.Hash) bool {
	for i, options := range filter {
		if len(options) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		matched := false
		for _, opt := range options {
			if topics[i] == opt {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func (m *MockChainClient) SubscribeFilterLogs(ctx context.Context, query geth.FilterQuery, ch chan<- types.Log) (geth.Subscription, error) {
	if m.SubscribeFilterLogsFunc != nil {
		return m.SubscribeFilterLogsFunc(ctx, query, ch)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	m.subCh = ch
	m.Subscription = NewMockSubscription()
	return m.Subscription, nil
}

// Push delivers a log on the open subscription
func (m *MockChainClient) Push(log types.Log) error {
	m.mu.Lock()
	ch := m.subCh
	m.mu.Unlock()
	if ch == nil {
		return errors.New("no subscription")
	}
	ch <- log
	return nil
}

// CurrentSubscription returns the latest subscription, nil before the first
func (m *MockChainClient) CurrentSubscription() *MockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Subscription
}

// TransferCall records one Transfer sent through MockTokenTransactor
type TransferCall struct {
	Token  common.Address
	To     common.Address
	Amount *big.Int
	At     time.Time
}

// MockTokenTransactor holds balances in memory. A transfer empties the token balance.
type MockTokenTransactor struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	sent     []TransferCall

	BalanceOfFunc func(ctx context.Context, token common.Address) (*big.Int, error)
	TransferFunc  func(ctx context.Context, token, to common.Address, amount *big.Int) (common.Hash, error)
	WaitMinedFunc func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	// Reverted makes every receipt report failure
	Reverted bool
}

func NewMockTokenTransactor() *MockTokenTransactor {
	return &MockTokenTransactor{balances: make(map[common.Address]*big.Int)}
}

// SetBalance sets the account's balance of token
func (m *MockTokenTransactor) SetBalance(token string, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[common.HexToAddress(token)] = new(big.Int).Set(amount)
}

func (m *MockTokenTransactor) BalanceOf(ctx context.Context, token common.Address) (*big.Int, error) {
	if m.BalanceOfFunc != nil {
		return m.BalanceOfFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[token]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (m *MockTokenTransactor) Transfer(ctx context.Context, token, to common.Address, amount *big.Int) (common.Hash, error) {
	if m.TransferFunc != nil {
		return m.TransferFunc(ctx, token, to, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, TransferCall{Token: token, To: to, Amount: new(big.Int).Set(amount), At: time.Now()})
	m.balances[token] = big.NewInt(0)
	return common.BigToHash(big.NewInt(int64(len(m.sent)))), nil
}

func (m *MockTokenTransactor) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if m.WaitMinedFunc != nil {
		return m.WaitMinedFunc(ctx, txHash)
	}
	status := types.ReceiptStatusSuccessful
	if m.Reverted {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{TxHash: txHash, Status: status}, nil
}

// Transfers returns the transfers sent so far
func (m *MockTokenTransactor) Transfers() []TransferCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TransferCall, len(m.sent))
	copy(out, m.sent)
	return out
}

// MockResolver returns configured descriptors, defaults for unknown tokens
type MockResolver struct {
	mu          sync.Mutex
	descriptors map[string]entities.TokenDescriptor
	calls       int
}

func NewMockResolver(descriptors ...entities.TokenDescriptor) *MockResolver {
	r := &MockResolver{descriptors: make(map[string]entities.TokenDescriptor)}
	for _, d := range descriptors {
		r.descriptors[strings.ToLower(d.Address)] = d
	}
	return r
}

func (r *MockResolver) Resolve(ctx context.Context, tokenAddress string) entities.TokenDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if d, ok := r.descriptors[strings.ToLower(tokenAddress)]; ok {
		return d
	}
	return entities.DefaultTokenDescriptor(tokenAddress)
}

// CallCount returns the number of Resolve calls
func (r *MockResolver) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// MockNotifier records notified forwards
type MockNotifier struct {
	mu       sync.Mutex
	forwards []entities.Forward
}

func (n *MockNotifier) Notify(ctx context.Context, forward entities.Forward) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.forwards = append(n.forwards, forward)
}

// Forwards returns the notified forwards
func (n *MockNotifier) Forwards() []entities.Forward {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]entities.Forward, len(n.forwards))
	copy(out, n.forwards)
	return out
}

// MockSeenStore is a map-backed SeenStore with an optional hook
type MockSeenStore struct {
	mu   sync.Mutex
	seen map[string]bool

	MarkSeenFunc func(ctx context.Context, key string) (bool, error)
}

func NewMockSeenStore() *MockSeenStore {
	return &MockSeenStore{seen: make(map[string]bool)}
}

func (s *MockSeenStore) MarkSeen(ctx context.Context, key string) (bool, error) {
	if s.MarkSeenFunc != nil {
		return s.MarkSeenFunc(ctx, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

// Keys returns the recorded keys
func (s *MockSeenStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.seen))
	for k := range s.seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MockHealthChecker reports a fixed health result
type MockHealthChecker struct {
	healthy bool
}

func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	return &MockHealthChecker{healthy: healthy}
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	if m.healthy {
		return nil
	}
	return errors.New("health check failed")
}
