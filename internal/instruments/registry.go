// Package instruments maps the supported symbol codes onto vendor instruments.
package instruments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
)

// ErrUnknownInstrument is returned for symbol codes outside the supported set
// or missing from the instrument master.
var ErrUnknownInstrument = errors.New("unknown instrument")

// Registry resolves symbol codes such as TXF to vendor instruments.
type Registry struct {
	supported  map[string]string
	masterURL  string
	cachePath  string
	httpClient *http.Client
	logger     logrus.FieldLogger

	mu          sync.RWMutex
	instruments map[string]Instrument
}

// NewRegistry creates a registry. supported maps symbol codes to vendor
// trading symbols; codes are matched case-insensitively.
func NewRegistry(supported map[string]string, masterURL, cachePath string, logger logrus.FieldLogger) *Registry {
	codes := make(map[string]string, len(supported))
	for code, symbol := range supported {
		codes[strings.ToUpper(code)] = symbol
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		supported:   codes,
		masterURL:   masterURL,
		cachePath:   cachePath,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger.WithField("component", "instruments"),
		instruments: make(map[string]Instrument),
	}
}

// Codes returns the supported symbol codes in sorted order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.supported))
	for code := range r.supported {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// Check rejects any code outside the supported set.
func (r *Registry) Check(codes []string) error {
	for _, code := range codes {
		if _, ok := r.supported[strings.ToUpper(code)]; !ok {
			return fmt.Errorf("%w: %s (supported: %s)", ErrUnknownInstrument, code, strings.Join(r.Codes(), ", "))
		}
	}
	return nil
}

// Resolve returns the vendor instrument for a symbol code.
func (r *Registry) Resolve(code string) (Instrument, error) {
	symbol, ok := r.supported[strings.ToUpper(code)]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, code)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instruments[symbol]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %s (%s) not in instrument master", ErrUnknownInstrument, code, symbol)
	}
	return inst, nil
}

// Download fetches the instrument master, caches it on disk and loads it.
func (r *Registry) Download(ctx context.Context) error {
	r.logger.WithField("url", r.masterURL).Info("downloading instrument master")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.masterURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download instruments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download instruments, status code: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(r.cachePath), 0755); err != nil {
		return fmt.Errorf("failed to create instruments directory: %w", err)
	}
	file, err := os.Create(r.cachePath)
	if err != nil {
		return fmt.Errorf("failed to create instruments file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return fmt.Errorf("failed to save instruments: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind file: %w", err)
	}
	_, err = r.Load(file)
	return err
}

// LoadCache loads the instrument master cached by a previous Download.
func (r *Registry) LoadCache() error {
	file, err := os.Open(r.cachePath)
	if err != nil {
		return fmt.Errorf("failed to open instruments cache: %w", err)
	}
	defer file.Close()
	_, err = r.Load(file)
	return err
}

// Load parses an instrument master CSV and keeps the rows whose trading
// symbol is one of the supported instruments. It returns the number kept.
func (r *Registry) Load(src io.Reader) (int, error) {
	var records []*instrumentRecord
	if err := gocsv.Unmarshal(src, &records); err != nil {
		return 0, fmt.Errorf("failed to parse instruments CSV: %w", err)
	}

	wanted := make(map[string]bool, len(r.supported))
	for _, symbol := range r.supported {
		wanted[symbol] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, rec := range records {
		if !wanted[rec.TradingSymbol] {
			continue
		}
		r.instruments[rec.TradingSymbol] = rec.instrument()
		count++
	}

	r.logger.WithFields(logrus.Fields{"rows": len(records), "kept": count}).Info("loaded instrument master")
	return count, nil
}

func parseIntOrZero(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
