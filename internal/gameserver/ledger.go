package gameserver

// ItemScrap is the catch-all salvage currency granted for kills.
const ItemScrap uint16 = 1

// killBounty is how much scrap a confirmed kill is worth.
const killBounty = 10

// Ledger tracks per-session item counts. Throwable attacks consume their
// item through it and kills pay out through it. Implementations are called
// from the tick goroutine only and need no locking of their own; anything
// backed by external storage must still return promptly.
type Ledger interface {
	// CanAfford reports whether the session holds at least qty of item.
	CanAfford(clientID uint32, item uint16, qty int) bool
	// Consume removes qty of item if the full amount is available and
	// reports whether it did.
	Consume(clientID uint32, item uint16, qty int) bool
	// Grant adds qty of item to the session's balance.
	Grant(clientID uint32, item uint16, qty int)
}

// MemoryLedger is the default Ledger, a plain in-process balance table.
// Balances do not survive a restart.
type MemoryLedger struct {
	balances map[uint32]map[uint16]int
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[uint32]map[uint16]int)}
}

func (l *MemoryLedger) CanAfford(clientID uint32, item uint16, qty int) bool {
	return l.balances[clientID][item] >= qty
}

func (l *MemoryLedger) Consume(clientID uint32, item uint16, qty int) bool {
	if !l.CanAfford(clientID, item, qty) {
		return false
	}
	l.balances[clientID][item] -= qty
	return true
}

func (l *MemoryLedger) Grant(clientID uint32, item uint16, qty int) {
	held, ok := l.balances[clientID]
	if !ok {
		held = make(map[uint16]int)
		l.balances[clientID] = held
	}
	held[item] += qty
}

// Balance reports the held count of item. Mostly useful for inspection.
func (l *MemoryLedger) Balance(clientID uint32, item uint16) int {
	return l.balances[clientID][item]
}
