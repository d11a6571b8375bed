package conversation

// ContextProvider is one agent's key/value store, split into a private
// half and a shared half that replicates across the conversation's agents.
//
// A provider is only touched from its owning agent's serial dispatch, so
// it carries no locking. The invariant is that a key lives in exactly one
// of the two maps, never both.
type ContextProvider struct {
	private map[string]string
	shared  map[string]string

	// sharedEligible names the variables whose writes replicate to the
	// conversation's other agents.
	sharedEligible map[string]bool

	// onSharedWrite fires after a write to a shared-eligible key. The
	// owning agent installs a hook that broadcasts through the router.
	onSharedWrite func(key, value string)
}

// NewContextProvider creates a provider with the given shared-eligible
// variable names.
func NewContextProvider(sharedVars []string) *ContextProvider {
	eligible := make(map[string]bool, len(sharedVars))
	for _, name := range sharedVars {
		eligible[name] = true
	}
	return &ContextProvider{
		private:        make(map[string]string),
		shared:         make(map[string]string),
		sharedEligible: eligible,
	}
}

// SetBroadcastHook installs the callback invoked after every write to a
// shared-eligible key.
func (p *ContextProvider) SetBroadcastHook(hook func(key, value string)) {
	p.onSharedWrite = hook
}

// Get returns the value for key from either half.
func (p *ContextProvider) Get(key string) (string, bool) {
	if v, ok := p.shared[key]; ok {
		return v, true
	}
	v, ok := p.private[key]
	return v, ok
}

// Set stores key. Shared-eligible keys go to the shared half and trigger
// the broadcast hook; everything else stays private. The other half is
// cleared so a key merged in from a broadcast can never shadow a local
// write.
func (p *ContextProvider) Set(key, value string) {
	if p.sharedEligible[key] {
		delete(p.private, key)
		p.shared[key] = value
		if p.onSharedWrite != nil {
			p.onSharedWrite(key, value)
		}
		return
	}
	delete(p.shared, key)
	p.private[key] = value
}

// Drop removes key from whichever half holds it.
func (p *ContextProvider) Drop(key string) {
	delete(p.shared, key)
	delete(p.private, key)
}

// MergeShared applies an inbound broadcast with first-write-wins: keys
// this provider already holds, in either half, are never overwritten.
func (p *ContextProvider) MergeShared(updates map[string]string) {
	for key, value := range updates {
		if _, exists := p.shared[key]; exists {
			continue
		}
		if _, exists := p.private[key]; exists {
			continue
		}
		p.shared[key] = value
	}
}
