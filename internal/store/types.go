package store

import (
	"time"

	"github.com/sabarim/txbars/internal/bars"
	"github.com/sabarim/txbars/internal/session"
)

// TickRecord represents a single raw tick for parquet
type TickRecord struct {
	Timestamp       int64    `parquet:"name=ts, type=INT64, encoding=DELTA_BINARY_PACKED"`
	Symbol          string   `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Close           float64  `parquet:"name=close, type=DOUBLE, encoding=PLAIN"`
	Volume          int64    `parquet:"name=volume, type=INT64, encoding=DELTA_BINARY_PACKED"`
	BidPrice        *float64 `parquet:"name=bid_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	BidVolume       *int64   `parquet:"name=bid_volume, type=INT64, repetitiontype=OPTIONAL"`
	AskPrice        *float64 `parquet:"name=ask_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	AskVolume       *int64   `parquet:"name=ask_volume, type=INT64, repetitiontype=OPTIONAL"`
	TickType        *int32   `parquet:"name=tick_type, type=INT32, repetitiontype=OPTIONAL"`
	UnderlyingPrice *float64 `parquet:"name=underlying_price, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// BarRecord represents a single bar for parquet
type BarRecord struct {
	Symbol          string   `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Date            string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Timestamp       int64    `parquet:"name=ts, type=INT64, encoding=DELTA_BINARY_PACKED"`
	Session         string   `parquet:"name=session, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Open            float64  `parquet:"name=open, type=DOUBLE, encoding=PLAIN"`
	High            float64  `parquet:"name=high, type=DOUBLE, encoding=PLAIN"`
	Low             float64  `parquet:"name=low, type=DOUBLE, encoding=PLAIN"`
	Close           float64  `parquet:"name=close, type=DOUBLE, encoding=PLAIN"`
	Volume          int64    `parquet:"name=volume, type=INT64, encoding=DELTA_BINARY_PACKED"`
	UnderlyingClose *float64 `parquet:"name=underlying_close, type=DOUBLE, repetitiontype=OPTIONAL"`
}

const dateLayout = "2006-01-02"

func tickToRecord(t bars.Tick) TickRecord {
	rec := TickRecord{
		Timestamp:       t.Timestamp.UnixNano(),
		Symbol:          t.Symbol,
		Close:           t.Price,
		Volume:          t.Volume,
		BidPrice:        t.BidPrice,
		BidVolume:       t.BidVolume,
		AskPrice:        t.AskPrice,
		AskVolume:       t.AskVolume,
		UnderlyingPrice: t.UnderlyingPrice,
	}
	if t.TickType != nil {
		v := int32(*t.TickType)
		rec.TickType = &v
	}
	return rec
}

func recordToTick(r TickRecord, loc *time.Location) bars.Tick {
	t := bars.Tick{
		Timestamp:       time.Unix(0, r.Timestamp).In(loc),
		Symbol:          r.Symbol,
		Price:           r.Close,
		Volume:          r.Volume,
		BidPrice:        r.BidPrice,
		BidVolume:       r.BidVolume,
		AskPrice:        r.AskPrice,
		AskVolume:       r.AskVolume,
		UnderlyingPrice: r.UnderlyingPrice,
	}
	if r.TickType != nil {
		v := int8(*r.TickType)
		t.TickType = &v
	}
	return t
}

func barToRecord(b bars.Bar) BarRecord {
	return BarRecord{
		Symbol:          b.Symbol,
		Date:            b.Date.Format(dateLayout),
		Timestamp:       b.Timestamp.UnixNano(),
		Session:         string(b.Session),
		Open:            b.Open,
		High:            b.High,
		Low:             b.Low,
		Close:           b.Close,
		Volume:          b.Volume,
		UnderlyingClose: b.UnderlyingClose,
	}
}

func recordToBar(r BarRecord, loc *time.Location) (bars.Bar, error) {
	d, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return bars.Bar{}, err
	}
	return bars.Bar{
		Symbol:          r.Symbol,
		Date:            d,
		Timestamp:       time.Unix(0, r.Timestamp).In(loc),
		Session:         session.OrDay(session.Session(r.Session)),
		Open:            r.Open,
		High:            r.High,
		Low:             r.Low,
		Close:           r.Close,
		Volume:          r.Volume,
		UnderlyingClose: r.UnderlyingClose,
	}, nil
}
