package ledger

// accountRegistry maps identities to accounts. Accounts live in an arena
// indexed by id - AccountBase; byIdentity resolves callers.
//
// INVARIANTS:
//   - one identity, at most one account, forever
//   - ids are dense and assigned in registration order
//   - nickname and avatar are write-once; only PostCount changes
type accountRegistry struct {
	accounts   []Account
	byIdentity map[Identity]AccountID
}

func newAccountRegistry() *accountRegistry {
	return &accountRegistry{byIdentity: make(map[Identity]AccountID)}
}

func (r *accountRegistry) len() int { return len(r.accounts) }

func (r *accountRegistry) nextID() AccountID {
	return AccountBase + AccountID(len(r.accounts))
}

func (r *accountRegistry) checkRegister(identity Identity) error {
	if _, ok := r.byIdentity[identity]; ok {
		return ErrAlreadyRegistered
	}
	return nil
}

// register stores a new account. Callers must run checkRegister first.
func (r *accountRegistry) register(identity Identity, nickname, avatarURL string, at Tick) AccountID {
	id := r.nextID()
	r.accounts = append(r.accounts, Account{
		ID:           id,
		Identity:     identity,
		Nickname:     nickname,
		AvatarURL:    avatarURL,
		Registered:   true,
		RegisteredAt: at,
	})
	r.byIdentity[identity] = id
	return id
}

func (r *accountRegistry) idOf(identity Identity) (AccountID, error) {
	id, ok := r.byIdentity[identity]
	if !ok {
		return 0, ErrNotRegistered
	}
	return id, nil
}

func (r *accountRegistry) get(id AccountID) (*Account, error) {
	if id < AccountBase || int(id-AccountBase) >= len(r.accounts) {
		return nil, &NotFoundError{Kind: "account", ID: uint64(id)}
	}
	return &r.accounts[id-AccountBase], nil
}

func (r *accountRegistry) incrementPostCount(id AccountID) {
	r.accounts[id-AccountBase].PostCount++
}
