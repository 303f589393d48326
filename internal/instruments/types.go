package instruments

// Instrument represents a tradable contract from the vendor instrument master
type Instrument struct {
	InstrumentToken int64
	TradingSymbol   string
	Expiry          string
	Exchange        string
}

// instrumentRecord is one CSV row of the instrument master. Only the columns
// used for resolving history requests are kept; gocsv ignores the rest. The
// token is a string because the vendor leaves it blank for some rows.
type instrumentRecord struct {
	InstrumentToken string `csv:"instrument_token"`
	TradingSymbol   string `csv:"tradingsymbol"`
	Expiry          string `csv:"expiry"`
	Exchange        string `csv:"exchange"`
}

func (r instrumentRecord) instrument() Instrument {
	return Instrument{
		InstrumentToken: parseIntOrZero(r.InstrumentToken),
		TradingSymbol:   r.TradingSymbol,
		Expiry:          r.Expiry,
		Exchange:        r.Exchange,
	}
}
