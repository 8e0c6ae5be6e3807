package valuation

// View is a read-only valuation snapshot over a cache and a trader book.
// Either may be nil.
type View struct {
	Market  *Cache
	Traders *TraderBook
}

// MarketPrice returns the cached unit market price of kindID.
func (v View) MarketPrice(kindID string) (float64, bool) {
	if v.Market == nil {
		return 0, false
	}
	return v.Market.Read(kindID)
}

// TraderPrice returns the best trader price of kindID.
func (v View) TraderPrice(kindID string) (float64, bool) {
	if v.Traders == nil {
		return 0, false
	}
	return v.Traders.TraderPrice(kindID)
}
