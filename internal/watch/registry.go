package watch

import (
	"sort"
	"sync"
)

// Account is a social account under observation.
type Account struct {
	ID         string
	Handle     string
	Priority   bool
	LastPostID string
}

// Wallet is an on-chain address under observation. SubscriberID names the
// SMS subscriber who registered it, empty when none.
type Wallet struct {
	Address      string
	Label        string
	SubscriberID string
}

// Subscriber is an SMS recipient.
type Subscriber struct {
	ID     string
	Phone  string
	Active bool
}

// Registry holds the monitored sources and subscribers for one process.
// It is loaded from storage at startup and mutated only by the orchestrator
// and management commands.
type Registry struct {
	mu          sync.RWMutex
	accounts    map[string]Account
	wallets     map[string]Wallet
	subscribers map[string]Subscriber
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		accounts:    make(map[string]Account),
		wallets:     make(map[string]Wallet),
		subscribers: make(map[string]Subscriber),
	}
}

// Load replaces the registry contents with a storage snapshot.
func (r *Registry) Load(accounts []Account, wallets []Wallet, subscribers []Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accounts = make(map[string]Account, len(accounts))
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	r.wallets = make(map[string]Wallet, len(wallets))
	for _, w := range wallets {
		r.wallets[w.Address] = w
	}
	r.subscribers = make(map[string]Subscriber, len(subscribers))
	for _, s := range subscribers {
		r.subscribers[s.ID] = s
	}
}

// PutAccount inserts or replaces a watched account.
func (r *Registry) PutAccount(a Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
}

// RemoveAccount drops a watched account.
func (r *Registry) RemoveAccount(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
}

// Account looks up one watched account.
func (r *Registry) Account(id string) (Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	return a, ok
}

// Accounts lists watched accounts ordered by id for deterministic polling.
func (r *Registry) Accounts() []Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetCursor records the last-seen post id after a successful fetch.
func (r *Registry) SetCursor(accountID, postID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return
	}
	a.LastPostID = postID
	r.accounts[accountID] = a
}

// PutWallet inserts or replaces a watched wallet.
func (r *Registry) PutWallet(w Wallet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[w.Address] = w
}

// RemoveWallet drops a watched wallet.
func (r *Registry) RemoveWallet(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.wallets, address)
}

// Wallet looks up one watched wallet.
func (r *Registry) Wallet(address string) (Wallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[address]
	return w, ok
}

// Wallets lists watched wallets ordered by address.
func (r *Registry) Wallets() []Wallet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Wallet, 0, len(r.wallets))
	for _, w := range r.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// PutSubscriber inserts or replaces an SMS subscriber.
func (r *Registry) PutSubscriber(s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[s.ID] = s
}

// RemoveSubscriber drops a subscriber.
func (r *Registry) RemoveSubscriber(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, id)
}

// ActiveSubscribers lists active subscribers ordered by id.
func (r *Registry) ActiveSubscribers() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Subscriber, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		if s.Active {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WalletSubscriber resolves the active subscriber who registered a wallet.
func (r *Registry) WalletSubscriber(address string) (Subscriber, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.wallets[address]
	if !ok || w.SubscriberID == "" {
		return Subscriber{}, false
	}
	s, ok := r.subscribers[w.SubscriberID]
	if !ok || !s.Active {
		return Subscriber{}, false
	}
	return s, true
}
